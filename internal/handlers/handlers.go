// Package handlers adapts inbound, unsolicited PDUs on each stack (the
// InitiatingMessages and Indications stack.Stack's read loop could not
// correlate with a pending request) to the workflow that owns them, per
// spec.md §2's "Handlers" component. F1AP's uplink RRC message indication
// is tried against the RRC matcher first, per spec.md §4.3, before being
// treated as unsolicited.
package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/f1ap"
	"github.com/your-org/gnb-cu-cp/internal/ngap"
	"github.com/your-org/gnb-cu-cp/internal/rrc"
	"github.com/your-org/gnb-cu-cp/internal/stack"
	"github.com/your-org/gnb-cu-cp/internal/worker"
	"github.com/your-org/gnb-cu-cp/internal/workflows"
)

// NGAP builds the unsolicited-PDU handler for the NG stack.
func NGAP(cap worker.Capability, logger *zap.Logger) stack.Handler {
	return func(ctx context.Context, env stack.Envelope) {
		switch {
		case env.Kind == stack.KindInitiatingMessage && env.ProcedureCode == ngap.ProcCodeUeContextRelease:
			handleUeContextReleaseCommand(ctx, cap, env, logger)
		case env.Kind == stack.KindIndicationMessage && env.ProcedureCode == ngap.IndCodeDownlinkNasTransport:
			handleDownlinkNasTransport(ctx, cap, env, logger)
		default:
			logger.Warn("ngap: unhandled unsolicited pdu", zap.Uint32("procedure_code", env.ProcedureCode), zap.Int("kind", int(env.Kind)))
		}
	}
}

func handleUeContextReleaseCommand(ctx context.Context, cap worker.Capability, env stack.Envelope, logger *zap.Logger) {
	cmd, err := ngap.DecodeUeContextReleaseCommand(env.Payload)
	if err != nil {
		logger.Warn("ngap: undecodable UeContextReleaseCommand", zap.Error(err))
		return
	}

	ueKey := cmd.RANUENGAPID
	state, err := cap.Store().Retrieve(ctx, ueKey)
	if err != nil {
		logger.Warn("ngap: UeContextReleaseCommand for unknown ue", zap.Uint32("ue_key", ueKey), zap.Error(err))
		if rerr := stack.RespondFailure(ctx, cap.NGAP(), ngap.ProcCodeUeContextRelease, env.TransactionID, ngap.EncodeUeContextReleaseFailure, ngap.UeContextReleaseFailure{Cause: "unknown ue"}, logger); rerr != nil {
			logger.Warn("ngap: failed to send UeContextReleaseFailure", zap.Error(rerr))
		}
		return
	}

	if err := workflows.UeRelease(ctx, cap, ueKey, state.GNBDUUEF1APID, state.GNBCUUPUEE1APID, cmd.Cause, logger); err != nil {
		logger.Warn("ngap: ue release workflow failed", zap.Error(err))
		if rerr := stack.RespondFailure(ctx, cap.NGAP(), ngap.ProcCodeUeContextRelease, env.TransactionID, ngap.EncodeUeContextReleaseFailure, ngap.UeContextReleaseFailure{Cause: err.Error()}, logger); rerr != nil {
			logger.Warn("ngap: failed to send UeContextReleaseFailure", zap.Error(rerr))
		}
		return
	}

	complete := ngap.UeContextReleaseComplete{AMFUENGAPID: cmd.AMFUENGAPID, RANUENGAPID: cmd.RANUENGAPID}
	if err := stack.RespondSuccess(ctx, cap.NGAP(), ngap.ProcCodeUeContextRelease, env.TransactionID, ngap.EncodeUeContextReleaseComplete, complete, logger); err != nil {
		logger.Warn("ngap: failed to send UeContextReleaseComplete", zap.Error(err))
	}
}

// handleDownlinkNasTransport observes AMF-originated NAS PDUs outside the
// Initial UE Attach flow. Security Mode's algorithm selection is driven
// inline by that workflow in this revision (see internal/workflows), not
// by this handler; what this handler does do is buffer the NAS PDU onto
// the UE's stored state so workflows.runRrcReconfiguration can carry it in
// the next RrcReconfiguration, per spec.md §4.7 step 9.
func handleDownlinkNasTransport(ctx context.Context, cap worker.Capability, env stack.Envelope, logger *zap.Logger) {
	msg, err := ngap.DecodeDownlinkNasTransport(env.Payload)
	if err != nil {
		logger.Warn("ngap: undecodable DownlinkNasTransport", zap.Error(err))
		return
	}

	ueKey := msg.RANUENGAPID
	state, err := cap.Store().Retrieve(ctx, ueKey)
	if err != nil {
		logger.Warn("ngap: DownlinkNasTransport for unknown ue", zap.Uint32("ue_key", ueKey), zap.Error(err))
		return
	}

	state.BufferedNAS = msg.NASPDU
	if err := cap.Store().StoreUE(ctx, ueKey, state, workflows.DefaultUETTL); err != nil {
		logger.Warn("ngap: failed to buffer downlink nas", zap.Uint32("ue_key", ueKey), zap.Error(err))
		return
	}

	logger.Info("ngap: downlink nas transport buffered for rrc reconfiguration", zap.Uint32("ue_key", ueKey), zap.Int("nas_len", len(msg.NASPDU)))
}

// F1AP builds the unsolicited-PDU handler for the F1 stack.
func F1AP(cap worker.Capability, gnbCUName string, logger *zap.Logger) stack.Handler {
	return func(ctx context.Context, env stack.Envelope) {
		switch {
		case env.Kind == stack.KindInitiatingMessage && env.ProcedureCode == f1ap.ProcCodeF1Setup:
			if err := workflows.F1SetupInbound(ctx, cap, env, gnbCUName, logger); err != nil {
				logger.Warn("f1ap: f1 setup workflow failed", zap.Error(err))
			}
		case env.Kind == stack.KindIndicationMessage && env.ProcedureCode == f1ap.IndCodeInitialULRRCMessage:
			handleInitialULRRCMessage(ctx, cap, env, logger)
		case env.Kind == stack.KindIndicationMessage && env.ProcedureCode == f1ap.IndCodeULRRCMessage:
			handleULRRCMessage(ctx, cap, env, logger)
		default:
			logger.Warn("f1ap: unhandled unsolicited pdu", zap.Uint32("procedure_code", env.ProcedureCode), zap.Int("kind", int(env.Kind)))
		}
	}
}

func handleInitialULRRCMessage(ctx context.Context, cap worker.Capability, env stack.Envelope, logger *zap.Logger) {
	msg, err := f1ap.DecodeInitialULRRCMessage(env.Payload)
	if err != nil {
		logger.Warn("f1ap: undecodable InitialULRRCMessage", zap.Error(err))
		return
	}
	if err := workflows.InitialUeAttach(ctx, cap, msg, logger); err != nil {
		logger.Warn("f1ap: initial ue attach workflow failed", zap.Error(err))
	}
}

// handleULRRCMessage tries the RRC matcher first, per spec.md §4.3; a
// message that matches no pending transaction is unsolicited and only
// logged (this revision does not handle UE-initiated RRC procedures
// outside the flows the matcher is waiting on).
func handleULRRCMessage(ctx context.Context, cap worker.Capability, env stack.Envelope, logger *zap.Logger) {
	msg, err := f1ap.DecodeULRRCMessage(env.Payload)
	if err != nil {
		logger.Warn("f1ap: undecodable ULRRCMessage", zap.Error(err))
		return
	}

	raw, _ := rrc.UnframeForSRB(msg.SRBID, msg.RRCContainer)
	var ulMsg rrc.UlDcchMessage
	if err := rrc.DecodePDU(raw, &ulMsg); err != nil {
		logger.Warn("f1ap: undecodable uplink dcch message", zap.Error(err))
		return
	}

	if !cap.MatchRRCTransaction(msg.GNBCUUEF1APID, ulMsg) {
		logger.Warn("f1ap: unsolicited uplink dcch message", zap.Uint32("ue_key", msg.GNBCUUEF1APID), zap.Int("kind", int(ulMsg.Kind)))
	}
}

// E1AP builds the unsolicited-PDU handler for the E1 stack. The CU-UP has
// no inbound-initiated procedure in this worker's scope (bearer setup and
// release are both CU-CP-initiated requests, answered as
// SuccessfulOutcome/UnsuccessfulOutcome and matched by the stack's
// pending-request table without ever reaching this handler).
func E1AP(logger *zap.Logger) stack.Handler {
	return func(ctx context.Context, env stack.Envelope) {
		logger.Warn("e1ap: unhandled unsolicited pdu", zap.Uint32("procedure_code", env.ProcedureCode), zap.Int("kind", int(env.Kind)))
	}
}
