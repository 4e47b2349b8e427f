package connectionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCapability struct {
	ngUp        bool
	connectErr  error
	connectedTo string
}

func (f *fakeCapability) ConnectAMF(ctx context.Context, amfAddress string) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connectedTo = amfAddress
	f.ngUp = true
	return nil
}

func (f *fakeCapability) DisconnectAMF(ctx context.Context) error {
	f.ngUp = false
	return nil
}

func (f *fakeCapability) NGIsUp() bool { return f.ngUp }

func TestConnectAMFTriggersConnect(t *testing.T) {
	cap := &fakeCapability{}
	srv := NewServer(cap, zap.NewNop())

	body, _ := json.Marshal(connectAMFRequest{AMFAddress: "10.0.0.1"})
	req := httptest.NewRequest(http.MethodPost, "/connection/connect-amf", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10.0.0.1", cap.connectedTo)
}

func TestConnectAMFIsIdempotentWhenAlreadyUp(t *testing.T) {
	cap := &fakeCapability{ngUp: true}
	srv := NewServer(cap, zap.NewNop())

	body, _ := json.Marshal(connectAMFRequest{AMFAddress: "10.0.0.1"})
	req := httptest.NewRequest(http.MethodPost, "/connection/connect-amf", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cap.connectedTo, "must not reopen an already-up association")
}

func TestDisconnectAMFIsIdempotentWhenAlreadyDown(t *testing.T) {
	cap := &fakeCapability{ngUp: false}
	srv := NewServer(cap, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/connection/disconnect-amf", nil)
	w := httptest.NewRecorder()

	srv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	cap := &fakeCapability{}
	srv := NewServer(cap, zap.NewNop())

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
