package workflows

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/e1ap"
	"github.com/your-org/gnb-cu-cp/internal/f1ap"
	"github.com/your-org/gnb-cu-cp/internal/ngap"
	"github.com/your-org/gnb-cu-cp/internal/rrc"
	"github.com/your-org/gnb-cu-cp/internal/stack"
	"github.com/your-org/gnb-cu-cp/internal/uestore"
	"github.com/your-org/gnb-cu-cp/internal/worker"
)

// defaultRRCTimeout bounds each await on the RRC matcher within the
// Initial UE Attach workflow. It is set independently of, and longer
// than, stack.DefaultRequestTimeout.
const defaultRRCTimeout = 8 * time.Second

// DefaultUETTL is the UE state store entry lifetime applied at every
// write during attach; subsequent workflows (release, or the store's own
// sweep) are what actually remove a UE's record. Exported so
// internal/handlers can use the same TTL when it buffers an
// out-of-band DownlinkNasTransport onto the UE's stored state.
const DefaultUETTL = time.Hour

// InitialUeAttach runs the ten-step Initial UE Attach workflow of
// spec.md §4.7: RRC Setup, NAS initial UE message, Security Mode, UE
// Context Setup (F1 + E1), and RRC Reconfiguration. Per spec.md §4.7's
// failure semantics, any stack error aborts the workflow, logging and
// leaving whatever UE state has already been persisted — workflows are
// not transactional across interfaces.
func InitialUeAttach(ctx context.Context, cap worker.Capability, msg f1ap.InitialULRRCMessage, logger *zap.Logger) error {
	ctx, span := tracer.Start(ctx, "Workflow.InitialUeAttach")
	defer span.End()

	ueKey := cap.AllocateUEKey()
	logger = logger.With(zap.Uint32("ue_key", ueKey))
	logger.Info("initial ue attach >>", zap.Uint32("gnb_du_ue_f1ap_id", msg.GNBDUUEF1APID), zap.Uint16("c_rnti", msg.CRNTI))

	state := uestore.UEState{Key: ueKey, GNBDUUEF1APID: msg.GNBDUUEF1APID, RRCState: "rrc_setup"}
	if err := cap.Store().StoreUE(ctx, ueKey, state, DefaultUETTL); err != nil {
		logger.Warn("initial ue attach: failed to store initial ue state", zap.Error(err))
		return fmt.Errorf("initial ue attach: store initial state: %w", err)
	}

	rrcSetup := rrc.RrcSetup{RRCTransactionID: 0}
	setupPDU, err := rrc.EncodePDU(rrcSetup)
	if err != nil {
		return fmt.Errorf("initial ue attach: encode RrcSetup: %w", err)
	}

	setupCompleteTxn := cap.NewRRCTransaction(ueKey)
	if err := cap.SendRRCToUE(ctx, ueKey, msg.GNBDUUEF1APID, 0, setupPDU); err != nil {
		setupCompleteTxn.Cancel()
		logger.Warn("initial ue attach: failed to send RrcSetup", zap.Error(err))
		return fmt.Errorf("initial ue attach: send RrcSetup: %w", err)
	}

	ulMsg, err := setupCompleteTxn.Recv(ctx, defaultRRCTimeout)
	if err != nil {
		logger.Warn("initial ue attach: no RrcSetupComplete received", zap.Error(err))
		return fmt.Errorf("initial ue attach: await RrcSetupComplete: %w", err)
	}
	if ulMsg.Kind != rrc.UlDcchRrcSetupComplete {
		logger.Warn("initial ue attach: unexpected uplink message while awaiting RrcSetupComplete", zap.Int("kind", int(ulMsg.Kind)))
		return fmt.Errorf("initial ue attach: unexpected uplink message kind %d while awaiting RrcSetupComplete", ulMsg.Kind)
	}
	setupComplete, err := rrc.DecodeRrcSetupComplete(ulMsg.RawContainer)
	if err != nil {
		return fmt.Errorf("initial ue attach: decode RrcSetupComplete: %w", err)
	}

	state.RRCState = "nas_pending"
	if err := cap.Store().StoreUE(ctx, ueKey, state, DefaultUETTL); err != nil {
		logger.Warn("initial ue attach: failed to persist nas_pending state", zap.Error(err))
	}

	logger.Info("initial ue attach: rrc setup complete, forwarding initial nas message")
	if err := stack.SendIndication(ctx, cap.NGAP(), ngap.InitialUeMessageIndication, ngap.InitialUeMessage{
		RANUENGAPID: ueKey,
		NASPDU:      setupComplete.NASMessage,
	}, logger); err != nil {
		logger.Warn("initial ue attach: failed to forward initial nas message", zap.Error(err))
		return fmt.Errorf("initial ue attach: initial nas message: %w", err)
	}

	// Security Mode: a conformant worker waits for the AMF's downlink NAS
	// instruction to select algorithms. Scenario S4 drives this directly;
	// production wiring would come from the NGAP handler's
	// DownlinkNasTransport dispatch instead of being inlined here.
	if err := runSecurityMode(ctx, cap, ueKey, msg.GNBDUUEF1APID, &state, logger); err != nil {
		return err
	}

	if err := runUeContextAndBearerSetup(ctx, cap, ueKey, msg.GNBDUUEF1APID, &state, logger); err != nil {
		return err
	}

	if err := runRrcReconfiguration(ctx, cap, ueKey, msg.GNBDUUEF1APID, &state, logger); err != nil {
		return err
	}

	state.RRCState = "connected"
	if err := cap.Store().StoreUE(ctx, ueKey, state, DefaultUETTL); err != nil {
		logger.Warn("initial ue attach: failed to persist final connected state", zap.Error(err))
	}

	logger.Info("initial ue attach <<")
	return nil
}

func runSecurityMode(ctx context.Context, cap worker.Capability, ueKey, gnbDUUEF1APID uint32, state *uestore.UEState, logger *zap.Logger) error {
	cmd := rrc.SecurityModeCommand{IntegrityAlgorithm: "NIA2", CipheringAlgorithm: "NEA2"}
	pdu, err := rrc.EncodePDU(cmd)
	if err != nil {
		return fmt.Errorf("security mode: encode command: %w", err)
	}

	txn := cap.NewRRCTransaction(ueKey)
	if err := cap.SendRRCToUE(ctx, ueKey, gnbDUUEF1APID, 1, pdu); err != nil {
		txn.Cancel()
		logger.Warn("security mode: failed to send SecurityModeCommand", zap.Error(err))
		return fmt.Errorf("security mode: send command: %w", err)
	}

	ulMsg, err := txn.Recv(ctx, defaultRRCTimeout)
	if err != nil {
		logger.Warn("security mode: no response received", zap.Error(err))
		return fmt.Errorf("security mode: await response: %w", err)
	}

	switch ulMsg.Kind {
	case rrc.UlDcchSecurityModeComplete:
		if _, err := rrc.DecodeSecurityModeComplete(ulMsg.RawContainer); err != nil {
			return fmt.Errorf("security mode: decode complete: %w", err)
		}
	case rrc.UlDcchSecurityModeFailure:
		return fmt.Errorf("security mode: UE reported SecurityModeFailure")
	default:
		return fmt.Errorf("security mode: unexpected uplink message kind %d", ulMsg.Kind)
	}

	state.Security = &uestore.SecurityContext{IntegrityAlgorithm: cmd.IntegrityAlgorithm, CipheringAlgorithm: cmd.CipheringAlgorithm}
	// Keep any NAS PDU the NGAP handler buffered onto the store meanwhile.
	if latest, err := cap.Store().Retrieve(ctx, ueKey); err == nil {
		state.BufferedNAS = latest.BufferedNAS
	}
	if err := cap.Store().StoreUE(ctx, ueKey, *state, DefaultUETTL); err != nil {
		logger.Warn("security mode: failed to persist security context", zap.Error(err))
	}

	logger.Info("security mode complete", zap.String("integrity", cmd.IntegrityAlgorithm), zap.String("ciphering", cmd.CipheringAlgorithm))
	return nil
}

func runUeContextAndBearerSetup(ctx context.Context, cap worker.Capability, ueKey, gnbDUUEF1APID uint32, state *uestore.UEState, logger *zap.Logger) error {
	const pduSessionID = uint8(1)
	const drbID = uint8(1)

	bearerReq := e1ap.BearerContextSetupRequest{
		GNBCUCPUEE1APID: ueKey,
		PDUSessionsToSetup: []e1ap.PDUSessionToSetup{
			{PDUSessionID: pduSessionID, DRBsToSetup: []e1ap.DRBToSetup{{DRBID: drbID, QoSInfo: e1ap.QoSFlowLevelQoSParameters{FiveQI: 9}}}},
		},
	}

	bearerResp, err := stack.Request(ctx, cap.E1AP(), e1ap.BearerContextSetupProcedure, bearerReq, logger)
	if err != nil {
		logger.Warn("ue context setup: bearer context setup failed", zap.Error(err))
		return fmt.Errorf("ue context setup: bearer context setup: %w", err)
	}

	ulTunnels := make([]f1ap.UPTransportLayerInformation, 0)
	for _, session := range bearerResp.PDUSessionsSetup {
		for _, drb := range session.DRBsSetup {
			for _, tnl := range drb.ULUPTNLInfo {
				ulTunnels = append(ulTunnels, f1ap.UPTransportLayerInformation{
					GTPTunnel: f1ap.GTPTunnel{TransportLayerAddress: tnl.GTPTunnel.TransportLayerAddress, GTPTEID: tnl.GTPTunnel.GTPTEID},
				})
			}
		}
	}

	ctxSetupReq := f1ap.UEContextSetupRequest{
		GNBCUUEF1APID: ueKey,
		GNBDUUEF1APID: gnbDUUEF1APID,
		SpCell:        f1ap.SpCell{ServCellIndex: 0},
		SRBsToBeSetup: []f1ap.SRBToBeSetup{{SRBID: 1}, {SRBID: 2}},
		DRBsToBeSetup: []f1ap.DRBToBeSetup{{DRBID: drbID, QoSInfo: f1ap.QoSFlowLevelQoSParameters{FiveQI: 9}, ULUPTNLInfo: ulTunnels}},
	}

	ctxSetupResp, err := stack.Request(ctx, cap.F1AP(), f1ap.UEContextSetupProcedure, ctxSetupReq, logger)
	if err != nil {
		logger.Warn("ue context setup: f1 ue context setup failed", zap.Error(err))
		return fmt.Errorf("ue context setup: f1 ue context setup: %w", err)
	}

	session := uestore.PDUSession{PDUSessionID: pduSessionID, DRBIDs: []uint8{drbID}}
	for _, drb := range ctxSetupResp.DRBsSetup {
		if drb.DRBID != drbID || len(drb.DLUPTNLInfo) == 0 {
			continue
		}
		session.DLTunnel = &uestore.GTPTunnelEndpoint{
			Address: []byte(drb.DLUPTNLInfo[0].GTPTunnel.TransportLayerAddress),
			TEID:    drb.DLUPTNLInfo[0].GTPTunnel.GTPTEID,
		}
	}

	state.GNBCUUPUEE1APID = bearerResp.GNBCUUPUEE1APID
	state.PDUSessions = append(state.PDUSessions, session)
	if latest, err := cap.Store().Retrieve(ctx, ueKey); err == nil {
		state.BufferedNAS = latest.BufferedNAS
	}
	if err := cap.Store().StoreUE(ctx, ueKey, *state, DefaultUETTL); err != nil {
		logger.Warn("ue context setup: failed to persist bearer state", zap.Error(err))
	}

	logger.Info("ue context setup complete", zap.Int("drbs_setup", len(ctxSetupResp.DRBsSetup)))
	return nil
}

// runRrcReconfiguration sends step 9 of spec.md §4.7: RrcReconfiguration
// "carrying any buffered downlink NAS". The workflow re-reads the UE's
// persisted state first, per spec.md §4.2's restart-safe invariant, so it
// picks up any NAS payload internal/handlers.handleDownlinkNasTransport
// buffered onto the store while earlier steps of this attach were still
// running, then clears it once RrcReconfigurationComplete has been
// received.
func runRrcReconfiguration(ctx context.Context, cap worker.Capability, ueKey, gnbDUUEF1APID uint32, state *uestore.UEState, logger *zap.Logger) error {
	if latest, err := cap.Store().Retrieve(ctx, ueKey); err == nil {
		state.BufferedNAS = latest.BufferedNAS
	}

	reconfig := rrc.RrcReconfiguration{RRCTransactionID: 1, BufferedNAS: state.BufferedNAS}
	pdu, err := rrc.EncodePDU(reconfig)
	if err != nil {
		return fmt.Errorf("rrc reconfiguration: encode: %w", err)
	}

	txn := cap.NewRRCTransaction(ueKey)
	if err := cap.SendRRCToUE(ctx, ueKey, gnbDUUEF1APID, 1, pdu); err != nil {
		txn.Cancel()
		logger.Warn("rrc reconfiguration: failed to send", zap.Error(err))
		return fmt.Errorf("rrc reconfiguration: send: %w", err)
	}

	ulMsg, err := txn.Recv(ctx, defaultRRCTimeout)
	if err != nil {
		logger.Warn("rrc reconfiguration: no RrcReconfigurationComplete received", zap.Error(err))
		return fmt.Errorf("rrc reconfiguration: await complete: %w", err)
	}
	if ulMsg.Kind != rrc.UlDcchRrcReconfigurationComplete {
		return fmt.Errorf("rrc reconfiguration: unexpected uplink message kind %d", ulMsg.Kind)
	}
	if _, err := rrc.DecodeRrcReconfigurationComplete(ulMsg.RawContainer); err != nil {
		return fmt.Errorf("rrc reconfiguration: decode complete: %w", err)
	}

	state.BufferedNAS = nil
	if err := cap.Store().StoreUE(ctx, ueKey, *state, DefaultUETTL); err != nil {
		logger.Warn("rrc reconfiguration: failed to clear buffered nas", zap.Error(err))
	}

	logger.Info("rrc reconfiguration complete", zap.Int("buffered_nas_len", len(reconfig.BufferedNAS)))
	return nil
}
