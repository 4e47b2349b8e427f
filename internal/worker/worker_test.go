package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	gconfig "github.com/your-org/gnb-cu-cp/internal/config"
	"github.com/your-org/gnb-cu-cp/internal/coordinator"
	"github.com/your-org/gnb-cu-cp/internal/rrc"
	"github.com/your-org/gnb-cu-cp/internal/stack"
	"github.com/your-org/gnb-cu-cp/internal/transport"
	"github.com/your-org/gnb-cu-cp/internal/uestore"
)

func testWorker(t *testing.T) (*Worker, *transport.PipeTransport) {
	t.Helper()
	tr := transport.NewPipeTransport()
	store := uestore.NewMemoryStore(time.Hour, zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })
	coord := coordinator.NewAutonomousCoordinator(zap.NewNop())

	cfg := gconfig.DefaultConfig()
	cfg.F1BindAddress = "f1-test"
	cfg.E1BindAddress = "e1-test"

	w := New(cfg, tr, stack.JSONCodec{}, store, coord, zap.NewNop())
	w.SetHandlers(
		func(ctx context.Context, env stack.Envelope) {},
		func(ctx context.Context, env stack.Envelope) {},
		func(ctx context.Context, env stack.Envelope) {},
	)
	return w, tr
}

func TestStartListeningBringsF1AndE1Up(t *testing.T) {
	w, tr := testWorker(t)
	ctx := context.Background()

	require.NoError(t, w.StartListening(ctx))

	_, err := tr.Dial(ctx, "f1-test", "", transport.F1APPPID)
	require.NoError(t, err)
	_, err = tr.Dial(ctx, "e1-test", "", transport.E1APPPID)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return w.F1AP().IsUp() }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return w.E1AP().IsUp() }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Shutdown(context.Background()))
}

func TestAllocateUEKeyNeverReturnsSentinelZero(t *testing.T) {
	w, _ := testWorker(t)
	for i := 0; i < 5; i++ {
		assert.NotZero(t, w.AllocateUEKey())
	}
}

func TestNgapConnectFailsFastWithNoListener(t *testing.T) {
	w, _ := testWorker(t)
	err := w.NgapConnect(context.Background(), "10.255.255.1")
	assert.Error(t, err)
}

func TestAssociateConnectionRecordsUpdateWithWorkerID(t *testing.T) {
	w, _ := testWorker(t)
	coord := w.coord.(*coordinator.AutonomousCoordinator)

	w.AssociateConnection()

	select {
	case r := <-coord.Updates():
		assert.Equal(t, w.WorkerID().String(), r.WorkerID)
	case <-time.After(time.Second):
		t.Fatal("expected a refresh update")
	}
}

func TestRRCTransactionRoundTripThroughWorker(t *testing.T) {
	w, _ := testWorker(t)
	const ueKey = uint32(42)

	txn := w.NewRRCTransaction(ueKey)
	msg := rrc.UlDcchMessage{Kind: rrc.UlDcchRrcSetupComplete, RawContainer: []byte("hello")}

	delivered := w.MatchRRCTransaction(ueKey, msg)
	require.True(t, delivered)

	got, err := txn.Recv(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestShutdownStopsPeriodicRefresh(t *testing.T) {
	w, _ := testWorker(t)
	require.NoError(t, w.StartListening(context.Background()))

	done := make(chan struct{})
	go func() {
		w.RunPeriodicRefresh()
		close(done)
	}()

	require.NoError(t, w.Shutdown(context.Background()))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic refresh did not exit after shutdown")
	}
}
