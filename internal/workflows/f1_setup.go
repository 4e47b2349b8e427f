package workflows

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/f1ap"
	"github.com/your-org/gnb-cu-cp/internal/stack"
	"github.com/your-org/gnb-cu-cp/internal/worker"
)

// F1SetupInbound handles an inbound F1SetupRequest from a DU: validates it,
// replies F1SetupResponse or F1SetupFailure, and on success chains into the
// GNB-CU Configuration Update workflow, per spec.md §4.7.
func F1SetupInbound(ctx context.Context, cap worker.Capability, env stack.Envelope, gnbCUName string, logger *zap.Logger) error {
	ctx, span := tracer.Start(ctx, "Workflow.F1SetupInbound")
	defer span.End()

	req, err := f1ap.DecodeF1SetupRequest(env.Payload)
	if err != nil {
		logger.Warn("f1 setup: undecodable request", zap.Error(err))
		return fmt.Errorf("f1 setup: decode request: %w", err)
	}

	logger.Info("f1 setup >>", zap.Uint64("gnb_du_id", req.GNBDUID), zap.String("gnb_du_name", req.GNBDUName))

	if len(req.ServedCellsToAdd) == 0 {
		fail := f1ap.F1SetupFailure{Cause: "no served cells advertised"}
		if rerr := stack.RespondFailure(ctx, cap.F1AP(), f1ap.ProcCodeF1Setup, env.TransactionID, f1ap.EncodeF1SetupFailure, fail, logger); rerr != nil {
			logger.Warn("f1 setup: failed to send F1SetupFailure", zap.Error(rerr))
		}
		return fmt.Errorf("f1 setup: rejected %s: no served cells", req.GNBDUName)
	}

	cellsToActivate := make([]f1ap.NRCGI, 0, len(req.ServedCellsToAdd))
	for _, cell := range req.ServedCellsToAdd {
		cellsToActivate = append(cellsToActivate, cell.NRCGI)
	}

	resp := f1ap.F1SetupResponse{
		GNBCUName:       gnbCUName,
		CellsToActivate: cellsToActivate,
		GNBCURRCVersion: f1ap.RRCVersion{Latest: []byte{15, 1, 0}},
	}

	if err := stack.RespondSuccess(ctx, cap.F1AP(), f1ap.ProcCodeF1Setup, env.TransactionID, f1ap.EncodeF1SetupResponse, resp, logger); err != nil {
		logger.Warn("f1 setup: failed to send F1SetupResponse", zap.Error(err))
		return fmt.Errorf("f1 setup: respond: %w", err)
	}

	logger.Info("f1 setup <<", zap.Int("cells_activated", len(cellsToActivate)))

	return GnbCuConfigurationUpdate(ctx, cap, logger)
}

// GnbCuConfigurationUpdate advertises this worker's own F1 endpoint to the
// DU, per spec.md §4.7. On success it spawns (never awaits inline)
// AssociateConnection, per the deadlock hazard of spec.md §4.4/§5.
func GnbCuConfigurationUpdate(ctx context.Context, cap worker.Capability, logger *zap.Logger) error {
	ctx, span := tracer.Start(ctx, "Workflow.GnbCuConfigurationUpdate")
	defer span.End()

	ip, _, err := net.SplitHostPort(cap.Config().F1BindAddress)
	if err != nil {
		ip = cap.Config().IPAddress
	}

	req := f1ap.GnbCuConfigurationUpdate{
		GnbCuTnlAssociationToAddList: []f1ap.GnbCuTnlAssociationToAddItem{
			{
				TNLAssociationTransportLayerAddress: f1ap.CpTransportLayerAddress{EndpointIPAddress: net.ParseIP(ip)},
				TNLAssociationUsage:                 f1ap.TNLAssociationUsageBoth,
			},
		},
	}

	logger.Info("gnb-cu configuration update >>", zap.String("endpoint", ip))

	_, err = stack.Request(ctx, cap.F1AP(), f1ap.GnbCuConfigurationUpdateProcedure, req, logger)
	if err != nil {
		logger.Warn("gnb-cu configuration update failed", zap.Error(err))
		return fmt.Errorf("gnb-cu configuration update: %w", err)
	}

	logger.Info("gnb-cu configuration update << acknowledged")

	go cap.AssociateConnection()

	return nil
}
