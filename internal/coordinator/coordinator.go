// Package coordinator implements the Coordinator Client of spec.md §4.4:
// a periodic liveness refresh and a connection-association trigger, in two
// flavours selected by the worker's ConnectionStyle — Autonomous (an
// embedded in-process coordinator reached over a channel) and Coordinated
// (an HTTP client). The Coordinated client's request/response shape and
// status-code handling are grounded on
// nf/amf/internal/client/nrf_client.go's NRFClient.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/stack"
)

// WorkerInfo is the part of RefreshWorker describing how to reach this
// worker, per spec.md §3's Worker Liveness Record.
type WorkerInfo struct {
	ConnectionAPIURL string `json:"connection_api_url"`
	F1Address        string `json:"f1_address"`
	E1Address        string `json:"e1_address"`
}

// ConnectionState reports which stacks currently have a live peer
// association.
type ConnectionState struct {
	NGUp bool `json:"ng_up"`
	F1Up bool `json:"f1_up"`
	E1Up bool `json:"e1_up"`
}

// RefreshWorker is the periodic liveness record the worker publishes to
// the coordinator, per spec.md §6.
type RefreshWorker struct {
	WorkerID        string          `json:"worker_id"`
	WorkerInfo      WorkerInfo      `json:"worker_info"`
	ConnectionState ConnectionState `json:"connection_state"`
}

// Client is the capability the worker uses to talk to its coordinator.
type Client interface {
	Refresh(ctx context.Context, r RefreshWorker) error
}

// HTTPClient is the Coordinated-mode client: it POSTs
// /workers/{id}/refresh to a configured coordinator base path.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient constructs a Coordinated-mode coordinator client.
func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Refresh sends RefreshWorker and treats any non-2xx response as a
// stack.KindCoordinatorAPI error, per spec.md §7.
func (c *HTTPClient) Refresh(ctx context.Context, r RefreshWorker) error {
	url := fmt.Sprintf("%s/workers/%s/refresh", c.baseURL, r.WorkerID)

	body, err := json.Marshal(r)
	if err != nil {
		return &stack.Error{Kind: stack.KindCoordinatorAPI, Op: "refresh", Err: fmt.Errorf("marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &stack.Error{Kind: stack.KindCoordinatorAPI, Op: "refresh", Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &stack.Error{Kind: stack.KindCoordinatorAPI, Op: "refresh", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &stack.Error{Kind: stack.KindCoordinatorAPI, Op: "refresh", Err: fmt.Errorf("coordinator returned status %d: %s", resp.StatusCode, string(respBody))}
	}

	c.logger.Debug("refresh sent to coordinator", zap.String("worker_id", r.WorkerID))
	return nil
}

// AutonomousCoordinator is the Autonomous-mode embedded coordinator: the
// worker IS its own coordinator, reachable over a local channel rather
// than HTTP. Refresh here simply records the latest liveness record; a
// real coordinator implementation would additionally run UE-to-worker
// assignment logic, which is out of scope for this worker-side repo.
type AutonomousCoordinator struct {
	logger  *zap.Logger
	updates chan RefreshWorker
}

// NewAutonomousCoordinator constructs the embedded coordinator with a
// buffered update channel so Refresh never blocks the caller.
func NewAutonomousCoordinator(logger *zap.Logger) *AutonomousCoordinator {
	return &AutonomousCoordinator{logger: logger, updates: make(chan RefreshWorker, 16)}
}

// Refresh records the liveness record locally; there is no network hop.
func (c *AutonomousCoordinator) Refresh(ctx context.Context, r RefreshWorker) error {
	select {
	case c.updates <- r:
	default:
		c.logger.Warn("autonomous coordinator update channel full, dropping oldest")
		<-c.updates
		c.updates <- r
	}
	return nil
}

// Updates exposes the channel of liveness records for introspection (by
// the connection API server or tests).
func (c *AutonomousCoordinator) Updates() <-chan RefreshWorker {
	return c.updates
}
