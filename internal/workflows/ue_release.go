package workflows

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/e1ap"
	"github.com/your-org/gnb-cu-cp/internal/f1ap"
	"github.com/your-org/gnb-cu-cp/internal/stack"
	"github.com/your-org/gnb-cu-cp/internal/worker"
)

// UeRelease tears down a UE's F1 context and deletes its state store entry,
// per spec.md §4.7. Per the workflow failure semantics, a release request
// failure is logged and the workflow abandoned; the store entry is left
// for the TTL sweep to eventually reclaim rather than deleted speculatively.
func UeRelease(ctx context.Context, cap worker.Capability, ueKey, gnbDUUEF1APID uint32, gnbCUUPUEE1APID uint32, cause string, logger *zap.Logger) error {
	ctx, span := tracer.Start(ctx, "Workflow.UeRelease")
	defer span.End()

	logger = logger.With(zap.Uint32("ue_key", ueKey))
	logger.Info("ue release >>", zap.String("cause", cause))

	if gnbCUUPUEE1APID != 0 {
		releaseCmd := e1ap.BearerContextReleaseCommand{GNBCUCPUEE1APID: ueKey, GNBCUUPUEE1APID: gnbCUUPUEE1APID}
		if _, err := stack.Request(ctx, cap.E1AP(), e1ap.BearerContextReleaseProcedure, releaseCmd, logger); err != nil {
			logger.Warn("ue release: bearer context release failed, continuing with f1 release", zap.Error(err))
		}
	}

	cmd := f1ap.UEContextReleaseCommand{
		GNBCUUEF1APID: ueKey,
		GNBDUUEF1APID: gnbDUUEF1APID,
		Cause:         f1ap.Cause{Value: cause},
	}

	if _, err := stack.Request(ctx, cap.F1AP(), f1ap.UEContextReleaseProcedure, cmd, logger); err != nil {
		logger.Warn("ue release failed", zap.Error(err))
		return fmt.Errorf("ue release: %w", err)
	}

	if err := cap.Store().Delete(ctx, ueKey); err != nil {
		logger.Warn("ue release: failed to delete ue state", zap.Error(err))
		return fmt.Errorf("ue release: delete state: %w", err)
	}

	logger.Info("ue release <<")
	return nil
}
