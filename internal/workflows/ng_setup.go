// Package workflows implements the signalling workflows of spec.md §4.7 as
// sequential scripts over the Worker capability set, grounded on the
// original Rust source's ng_setup.rs/gnb_cu_configuration_update.rs control
// flow: connect (if needed) → build request → stack.Request → log the
// outcome → on success, chain into the next workflow or spawn a detached
// follow-up. Tracing follows nf/gnb/internal/cu/cu.go's per-call
// tracer.Start/span.End idiom, generalized from per-RPC to per-workflow
// spans.
package workflows

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/ngap"
	"github.com/your-org/gnb-cu-cp/internal/stack"
	"github.com/your-org/gnb-cu-cp/internal/worker"
)

var tracer trace.Tracer = otel.Tracer("gnbcucp-workflows")

// NgSetup performs the NG Setup procedure against amfAddress: connect the
// outbound NG association, send NgSetupRequest, and log the AMF's name on
// success. Per spec.md §4.7, any stack error or UnsuccessfulOutcome fails
// the workflow; the caller decides whether to retry.
func NgSetup(ctx context.Context, cap worker.Capability, amfAddress string, globalRANNodeID ngap.GlobalRANNodeID, ranNodeName string, supportedTAList []ngap.SupportedTAItem, logger *zap.Logger) error {
	ctx, span := tracer.Start(ctx, "Workflow.NgSetup")
	defer span.End()

	logger.Info("ng setup >>", zap.String("amf_address", amfAddress))

	if !cap.NGIsUp() {
		if err := cap.NgapConnect(ctx, amfAddress); err != nil {
			logger.Warn("ng setup failed: could not connect to AMF", zap.Error(err))
			return fmt.Errorf("ng setup: connect to AMF: %w", err)
		}
	}

	req := ngap.NgSetupRequest{
		GlobalRANNodeID:  globalRANNodeID,
		RANNodeName:      ranNodeName,
		SupportedTAList:  supportedTAList,
		DefaultPagingDRX: ngap.PagingDRXV128,
	}

	resp, err := stack.Request(ctx, cap.NGAP(), ngap.NgSetupProcedure, req, logger)
	if err != nil {
		logger.Warn("ng setup failed", zap.Error(err))
		return fmt.Errorf("ng setup: %w", err)
	}

	logger.Info("ng setup <<", zap.String("amf_name", resp.AMFName), zap.Int("relative_amf_capacity", resp.RelativeAMFCapacity))
	return nil
}
