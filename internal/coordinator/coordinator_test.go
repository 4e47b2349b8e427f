package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPClientRefreshSuccess(t *testing.T) {
	var received RefreshWorker
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/workers/abc/refresh", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, zap.NewNop())
	err := c.Refresh(context.Background(), RefreshWorker{
		WorkerID:        "abc",
		WorkerInfo:      WorkerInfo{F1Address: "10.0.0.1:38472"},
		ConnectionState: ConnectionState{F1Up: true},
	})
	require.NoError(t, err)
	assert.True(t, received.ConnectionState.F1Up)
}

func TestHTTPClientRefreshNonSuccessStatusIsCoordinatorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, zap.NewNop())
	err := c.Refresh(context.Background(), RefreshWorker{WorkerID: "abc"})
	require.Error(t, err)
}

func TestAutonomousCoordinatorRecordsUpdates(t *testing.T) {
	c := NewAutonomousCoordinator(zap.NewNop())
	require.NoError(t, c.Refresh(context.Background(), RefreshWorker{WorkerID: "w1"}))

	select {
	case r := <-c.Updates():
		assert.Equal(t, "w1", r.WorkerID)
	case <-time.After(time.Second):
		t.Fatal("expected update")
	}
}

func TestRunPeriodicRefreshExitsWithinOneIntervalOfCancellation(t *testing.T) {
	var calls atomic.Int32
	fakeClient := refreshFunc(func(ctx context.Context, r RefreshWorker) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		RunPeriodicRefresh(ctx, 20*time.Millisecond, fakeClient, func() RefreshWorker { return RefreshWorker{WorkerID: "w"} }, zap.NewNop())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("refresh loop did not exit within one interval of cancellation")
	}

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

type refreshFunc func(ctx context.Context, r RefreshWorker) error

func (f refreshFunc) Refresh(ctx context.Context, r RefreshWorker) error { return f(ctx, r) }
