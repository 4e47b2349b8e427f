// Package workflows_test exercises the workflows against a real Worker over
// transport.PipeTransport, wired with the real internal/handlers dispatch —
// hence the external test package, since internal/handlers itself imports
// internal/workflows and a same-package test file would cycle.
package workflows_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	gconfig "github.com/your-org/gnb-cu-cp/internal/config"
	"github.com/your-org/gnb-cu-cp/internal/coordinator"
	"github.com/your-org/gnb-cu-cp/internal/e1ap"
	"github.com/your-org/gnb-cu-cp/internal/f1ap"
	"github.com/your-org/gnb-cu-cp/internal/handlers"
	"github.com/your-org/gnb-cu-cp/internal/ngap"
	"github.com/your-org/gnb-cu-cp/internal/stack"
	"github.com/your-org/gnb-cu-cp/internal/transport"
	"github.com/your-org/gnb-cu-cp/internal/uestore"
	"github.com/your-org/gnb-cu-cp/internal/worker"
	"github.com/your-org/gnb-cu-cp/internal/workflows"
)

// newTestWorker builds a Worker wired with the real unsolicited-pdu
// handlers from internal/handlers and already listening on F1/E1, the same
// shape main.go assembles, so DU/CU-UP test doubles can dial straight in.
func newTestWorker(t *testing.T, tr *transport.PipeTransport, gnbCUName string) *worker.Worker {
	t.Helper()
	logger := zap.NewNop()
	store := uestore.NewMemoryStore(time.Hour, logger)
	t.Cleanup(func() { _ = store.Close() })
	coord := coordinator.NewAutonomousCoordinator(logger)

	cfg := gconfig.DefaultConfig()
	cfg.F1BindAddress = "cu-f1"
	cfg.E1BindAddress = "cu-e1"

	w := worker.New(cfg, tr, stack.JSONCodec{}, store, coord, logger)
	w.SetHandlers(handlers.NGAP(w, logger), handlers.F1AP(w, gnbCUName, logger), handlers.E1AP(logger))
	require.NoError(t, w.StartListening(context.Background()))
	return w
}

// f1SetupProcedure lets the DU test double drive the request side of F1
// Setup, which the real worker only ever answers (see internal/f1ap's
// doc comment on why no such descriptor is exported from that package).
var f1SetupProcedure = stack.Procedure[f1ap.F1SetupRequest, f1ap.F1SetupResponse, f1ap.F1SetupFailure]{
	Name:          "F1Setup",
	Code:          f1ap.ProcCodeF1Setup,
	EncodeRequest: func(v f1ap.F1SetupRequest) ([]byte, error) { return stack.JSONCodec{}.EncodeValue(v) },
	DecodeSuccess: func(b []byte) (f1ap.F1SetupResponse, error) {
		var v f1ap.F1SetupResponse
		err := stack.JSONCodec{}.DecodeValue(b, &v)
		return v, err
	},
	DecodeFailure: func(b []byte) (f1ap.F1SetupFailure, error) {
		var v f1ap.F1SetupFailure
		err := stack.JSONCodec{}.DecodeValue(b, &v)
		return v, err
	},
}

func TestNgSetupSucceedsAgainstMockAMF(t *testing.T) {
	tr := transport.NewPipeTransport()
	logger := zap.NewNop()

	amf := stack.New("amf", tr, stack.JSONCodec{}, transport.NGAPPPID, 16, logger)
	_, err := amf.Listen(context.Background(), "mock-amf:38412", func(ctx context.Context, env stack.Envelope) {
		if env.Kind != stack.KindInitiatingMessage || env.ProcedureCode != ngap.ProcCodeNgSetup {
			return
		}
		resp := ngap.NgSetupResponse{AMFName: "mock-amf-1", RelativeAMFCapacity: 100}
		_ = stack.RespondSuccess(ctx, amf, ngap.ProcCodeNgSetup, env.TransactionID, func(v ngap.NgSetupResponse) ([]byte, error) {
			return stack.JSONCodec{}.EncodeValue(v)
		}, resp, logger)
	}, logger)
	require.NoError(t, err)

	w := newTestWorker(t, tr, "gnb-cu-test")

	err = workflows.NgSetup(context.Background(), w, "mock-amf", ngap.GlobalRANNodeID{GNBID: 1}, "gnb-test-1", nil, logger)
	require.NoError(t, err)
	assert.True(t, w.NGIsUp())
}

func TestNgSetupFailsWithNoAMFListening(t *testing.T) {
	tr := transport.NewPipeTransport()
	w := newTestWorker(t, tr, "gnb-cu-test")

	err := workflows.NgSetup(context.Background(), w, "nobody-home", ngap.GlobalRANNodeID{}, "gnb-test-1", nil, zap.NewNop())
	assert.Error(t, err)
	assert.False(t, w.NGIsUp())
}

func TestF1SetupInboundTriggersConfigurationUpdateAcknowledge(t *testing.T) {
	tr := transport.NewPipeTransport()
	logger := zap.NewNop()
	w := newTestWorker(t, tr, "gnb-cu-test")

	configUpdateAcked := make(chan struct{}, 1)
	du := stack.New("du", tr, stack.JSONCodec{}, transport.F1APPPID, 8, logger)
	err := du.Connect(context.Background(), "cu-f1", "", func(ctx context.Context, env stack.Envelope) {
		if env.Kind == stack.KindInitiatingMessage && env.ProcedureCode == f1ap.ProcCodeGnbCuConfigurationUpdate {
			_ = stack.RespondSuccess(ctx, du, f1ap.ProcCodeGnbCuConfigurationUpdate, env.TransactionID, func(v f1ap.GnbCuConfigurationUpdateAcknowledge) ([]byte, error) {
				return stack.JSONCodec{}.EncodeValue(v)
			}, f1ap.GnbCuConfigurationUpdateAcknowledge{}, logger)
			configUpdateAcked <- struct{}{}
		}
	}, logger)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return w.F1AP().IsUp() }, time.Second, 5*time.Millisecond)

	req := f1ap.F1SetupRequest{
		GNBDUID:   1,
		GNBDUName: "du-1",
		ServedCellsToAdd: []f1ap.ServedCell{
			{ServedCellIndex: 0, NRCGI: f1ap.NRCGI{PLMN: f1ap.PLMNID{MCC: "001", MNC: "01"}, NRCellID: 1}},
		},
	}

	resp, err := stack.Request(context.Background(), du, f1SetupProcedure, req, logger)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.GNBCUName)

	select {
	case <-configUpdateAcked:
	case <-time.After(time.Second):
		t.Fatal("expected worker to send GnbCuConfigurationUpdate after F1 Setup")
	}
}

func TestF1SetupInboundRejectsRequestWithNoCells(t *testing.T) {
	tr := transport.NewPipeTransport()
	logger := zap.NewNop()
	w := newTestWorker(t, tr, "gnb-cu-test")

	du := stack.New("du", tr, stack.JSONCodec{}, transport.F1APPPID, 8, logger)
	err := du.Connect(context.Background(), "cu-f1", "", func(ctx context.Context, env stack.Envelope) {}, logger)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return w.F1AP().IsUp() }, time.Second, 5*time.Millisecond)

	req := f1ap.F1SetupRequest{GNBDUID: 2, GNBDUName: "du-2"}
	_, err = stack.Request(context.Background(), du, f1SetupProcedure, req, logger)
	assert.Error(t, err)
}

func TestUeReleaseTearsDownF1AndE1AndDeletesState(t *testing.T) {
	tr := transport.NewPipeTransport()
	logger := zap.NewNop()
	w := newTestWorker(t, tr, "gnb-cu-test")

	const ueKey = uint32(7)
	require.NoError(t, w.Store().StoreUE(context.Background(), ueKey, uestore.UEState{Key: ueKey, GNBDUUEF1APID: 100, GNBCUUPUEE1APID: 200}, time.Hour))

	f1Released := make(chan struct{}, 1)
	du := stack.New("du", tr, stack.JSONCodec{}, transport.F1APPPID, 8, logger)
	err := du.Connect(context.Background(), "cu-f1", "", func(ctx context.Context, env stack.Envelope) {
		if env.Kind == stack.KindInitiatingMessage && env.ProcedureCode == f1ap.ProcCodeUEContextRelease {
			_ = stack.RespondSuccess(ctx, du, f1ap.ProcCodeUEContextRelease, env.TransactionID, func(v f1ap.UEContextReleaseComplete) ([]byte, error) {
				return stack.JSONCodec{}.EncodeValue(v)
			}, f1ap.UEContextReleaseComplete{GNBCUUEF1APID: ueKey, GNBDUUEF1APID: 100}, logger)
			f1Released <- struct{}{}
		}
	}, logger)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return w.F1AP().IsUp() }, time.Second, 5*time.Millisecond)

	e1Released := make(chan struct{}, 1)
	cuup := stack.New("cuup", tr, stack.JSONCodec{}, transport.E1APPPID, 8, logger)
	err = cuup.Connect(context.Background(), "cu-e1", "", func(ctx context.Context, env stack.Envelope) {
		if env.Kind == stack.KindInitiatingMessage && env.ProcedureCode == e1ap.ProcCodeBearerContextRelease {
			_ = stack.RespondSuccess(ctx, cuup, e1ap.ProcCodeBearerContextRelease, env.TransactionID, func(v e1ap.BearerContextReleaseComplete) ([]byte, error) {
				return stack.JSONCodec{}.EncodeValue(v)
			}, e1ap.BearerContextReleaseComplete{GNBCUCPUEE1APID: ueKey, GNBCUUPUEE1APID: 200}, logger)
			e1Released <- struct{}{}
		}
	}, logger)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return w.E1AP().IsUp() }, time.Second, 5*time.Millisecond)

	err = workflows.UeRelease(context.Background(), w, ueKey, 100, 200, "normal release", logger)
	require.NoError(t, err)

	select {
	case <-e1Released:
	case <-time.After(time.Second):
		t.Fatal("expected E1 Bearer Context Release to reach the CU-UP")
	}

	select {
	case <-f1Released:
	case <-time.After(time.Second):
		t.Fatal("expected F1 UE Context Release to reach the DU")
	}

	_, err = w.Store().Retrieve(context.Background(), ueKey)
	assert.Error(t, err)
}
