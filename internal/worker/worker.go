// Package worker implements the Worker Engine of spec.md §4.6: it owns
// the three protocol stacks, the UE store handle, the RRC matcher, the
// coordinator client, and the list of shutdown handles, and exposes the
// capability set workflows are written against. Startup/shutdown
// sequencing follows the original Rust worker.rs's spawn/start_servers/run
// functions; "cyclic ownership" (§9) is resolved the way that source
// suggests: handlers are constructed over a Capability reference to the
// Worker rather than the Worker embedding a back-pointer to its handlers.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/coordinator"
	"github.com/your-org/gnb-cu-cp/internal/f1ap"
	"github.com/your-org/gnb-cu-cp/internal/ids"
	"github.com/your-org/gnb-cu-cp/internal/metrics"
	"github.com/your-org/gnb-cu-cp/internal/rrc"
	"github.com/your-org/gnb-cu-cp/internal/rrcmatch"
	"github.com/your-org/gnb-cu-cp/internal/stack"
	gconfig "github.com/your-org/gnb-cu-cp/internal/config"
	"github.com/your-org/gnb-cu-cp/internal/transport"
	"github.com/your-org/gnb-cu-cp/internal/uestore"
)

// Capability is the interface spec.md §9 calls for: workflows and
// handlers are written against this, never against *Worker directly,
// so handler construction never needs a literal back-pointer.
type Capability interface {
	Config() *gconfig.Config
	WorkerID() uuid.UUID
	Logger() *zap.Logger

	NGAP() *stack.Stack
	F1AP() *stack.Stack
	E1AP() *stack.Stack

	NgapConnect(ctx context.Context, amfAddress string) error
	NGIsUp() bool

	NewRRCTransaction(ueKey uint32) *rrcmatch.Transaction
	MatchRRCTransaction(ueKey uint32, msg rrc.UlDcchMessage) bool
	SendRRCToUE(ctx context.Context, ueKey, gnbDUUEF1APID uint32, srbID uint8, container []byte) error

	AllocateUEKey() uint32

	AssociateConnection()

	Store() uestore.Store
}

// Worker is the concrete Worker Engine.
type Worker struct {
	id     uuid.UUID
	config *gconfig.Config
	logger *zap.Logger

	ngap *stack.Stack
	f1ap *stack.Stack
	e1ap *stack.Stack

	store   uestore.Store
	matcher *rrcmatch.Matcher
	coord   coordinator.Client
	keys    *ids.UEKeyAllocator

	mu              sync.Mutex
	shutdownHandles []*stack.ShutdownHandle

	stopCtx    context.Context
	stopCancel context.CancelFunc

	ngapHandler stack.Handler
	f1apHandler stack.Handler
	e1apHandler stack.Handler
}

// New constructs a Worker. ngapHandler/f1apHandler/e1apHandler are
// installed on their respective stacks at Listen/Connect time; callers
// typically build these from internal/handlers closures over the Worker
// itself (as a Capability), constructed after New returns.
func New(
	cfg *gconfig.Config,
	tr transport.Transport,
	codec stack.Codec,
	store uestore.Store,
	coord coordinator.Client,
	logger *zap.Logger,
) *Worker {
	stopCtx, stopCancel := context.WithCancel(context.Background())

	return &Worker{
		id:         uuid.New(),
		config:     cfg,
		logger:     logger,
		ngap:       stack.New("ngap", tr, codec, transport.NGAPPPID, 16, logger),
		f1ap:       stack.New("f1ap", tr, codec, transport.F1APPPID, 8, logger),
		e1ap:       stack.New("e1ap", tr, codec, transport.E1APPPID, 8, logger),
		store:      store,
		matcher:    rrcmatch.New(),
		coord:      coord,
		keys:       ids.NewUEKeyAllocator(),
		stopCtx:    stopCtx,
		stopCancel: stopCancel,
	}
}

// SetHandlers installs the per-interface handlers for unsolicited PDUs.
// Must be called before StartListening and NgapConnect.
func (w *Worker) SetHandlers(ngapHandler, f1apHandler, e1apHandler stack.Handler) {
	w.ngapHandler = ngapHandler
	w.f1apHandler = f1apHandler
	w.e1apHandler = e1apHandler
}

func (w *Worker) Config() *gconfig.Config { return w.config }
func (w *Worker) WorkerID() uuid.UUID     { return w.id }
func (w *Worker) Logger() *zap.Logger     { return w.logger }
func (w *Worker) NGAP() *stack.Stack      { return w.ngap }
func (w *Worker) F1AP() *stack.Stack      { return w.f1ap }
func (w *Worker) E1AP() *stack.Stack      { return w.e1ap }
func (w *Worker) Store() uestore.Store    { return w.store }

// NGIsUp reports whether the NG association is currently up, satisfying
// both Capability and connectionapi.Capability.
func (w *Worker) NGIsUp() bool { return w.ngap.IsUp() }

// NgapConnect initiates the outbound NG association, per spec.md §4.6.
// It is not idempotent: it always dials, so callers that must not reopen
// an existing association check NGIsUp first.
func (w *Worker) NgapConnect(ctx context.Context, amfAddress string) error {
	addr := fmt.Sprintf("%s:%d", amfAddress, transport.NGAPPort)
	return w.ngap.Connect(ctx, addr, "", w.ngapHandler, w.logger)
}

// ConnectAMF satisfies connectionapi.Capability; it is NgapConnect under
// the name the Connection API's contract uses.
func (w *Worker) ConnectAMF(ctx context.Context, amfAddress string) error {
	return w.NgapConnect(ctx, amfAddress)
}

// DisconnectAMF satisfies connectionapi.Capability.
func (w *Worker) DisconnectAMF(ctx context.Context) error {
	return w.ngap.GracefulShutdown(ctx)
}

// NewRRCTransaction registers a pending matcher slot for ueKey.
func (w *Worker) NewRRCTransaction(ueKey uint32) *rrcmatch.Transaction {
	return w.matcher.NewTransaction(ueKey, w.logger)
}

// MatchRRCTransaction delivers msg to ueKey's pending slot, if any.
func (w *Worker) MatchRRCTransaction(ueKey uint32, msg rrc.UlDcchMessage) bool {
	return w.matcher.MatchTransaction(ueKey, msg)
}

// AllocateUEKey hands out the next gnb_cu_ue_f1ap_id.
func (w *Worker) AllocateUEKey() uint32 {
	return w.keys.Allocate()
}

// SendRRCToUE builds and sends a DLRRCMessageTransfer on F1, applying PDCP
// framing per srbID, per spec.md §4.6.
func (w *Worker) SendRRCToUE(ctx context.Context, ueKey, gnbDUUEF1APID uint32, srbID uint8, container []byte) error {
	framed := rrc.FrameForSRB(srbID, container, 0)
	msg := f1ap.DLRRCMessage{
		GNBCUUEF1APID: ueKey,
		GNBDUUEF1APID: gnbDUUEF1APID,
		SRBID:         srbID,
		RRCContainer:  framed,
	}
	return stack.SendIndication(ctx, w.f1ap, f1ap.DLRRCMessageIndication, msg, w.logger)
}

// AssociateConnection sends one immediate refresh to the coordinator so it
// learns this worker's new peer endpoint, per spec.md §4.4. Per that same
// section, this MUST be invoked as go w.AssociateConnection() by callers,
// never awaited inline from within a workflow the coordinator triggered —
// the coordinator may already be blocked waiting on that workflow to
// return, and awaiting here would deadlock. Enforcing that at the call
// site (not inside this method) mirrors the original Rust source's
// explicit comment in gnb_cu_configuration_update.rs.
func (w *Worker) AssociateConnection() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := w.buildRefresh()
	if err := w.coord.Refresh(ctx, r); err != nil {
		w.logger.Warn("associate_connection refresh failed", zap.String("worker_id", w.id.String()), zap.Error(err))
		metrics.CoordinatorRefreshTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.CoordinatorRefreshTotal.WithLabelValues("success").Inc()
}

func (w *Worker) buildRefresh() coordinator.RefreshWorker {
	connectionAPIURL := ""
	if w.config.ConnectionStyle.Coordinated != nil {
		connectionAPIURL = w.config.ConnectionStyle.Coordinated.ConnectionAPIAddress
	}
	return coordinator.RefreshWorker{
		WorkerID: w.id.String(),
		WorkerInfo: coordinator.WorkerInfo{
			ConnectionAPIURL: connectionAPIURL,
			F1Address:        w.config.F1BindAddress,
			E1Address:        w.config.E1BindAddress,
		},
		ConnectionState: coordinator.ConnectionState{
			NGUp: w.ngap.IsUp(),
			F1Up: w.f1ap.IsUp(),
			E1Up: w.e1ap.IsUp(),
		},
	}
}

// StopToken returns the worker's single process-wide cancellation handle
// (spec.md §5). Triggering cancel makes the periodic refresh task exit at
// its next wake; it does not drain the stacks, which Shutdown does after
// triggering it.
func (w *Worker) StopToken() (context.Context, context.CancelFunc) {
	return w.stopCtx, w.stopCancel
}

func (w *Worker) addShutdownHandle(h *stack.ShutdownHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdownHandles = append(w.shutdownHandles, h)
}

// StartListening starts the F1AP and E1AP listeners (and, in Coordinated
// mode, the caller is expected to separately start the Connection API
// server): steps (1)-(2) of the startup sequence in spec.md §4.6. NGAP is
// deliberately not started here — it is outbound-only and started by
// NgapConnect, shut down last per the sequence's step (7).
func (w *Worker) StartListening(ctx context.Context) error {
	f1Handle, err := w.f1ap.Listen(ctx, w.config.F1BindAddress, w.f1apHandler, w.logger)
	if err != nil {
		return fmt.Errorf("start F1AP listener: %w", err)
	}
	w.addShutdownHandle(f1Handle)
	metrics.SetAssociationUp("f1ap", false)

	e1Handle, err := w.e1ap.Listen(ctx, w.config.E1BindAddress, w.e1apHandler, w.logger)
	if err != nil {
		return fmt.Errorf("start E1AP listener: %w", err)
	}
	w.addShutdownHandle(e1Handle)
	metrics.SetAssociationUp("e1ap", false)

	return nil
}

// RunPeriodicRefresh starts the periodic liveness task (step 4 of the
// startup sequence), racing the configured interval against the worker's
// stop token. It blocks until the stop token fires, so callers run it in
// its own goroutine.
func (w *Worker) RunPeriodicRefresh() {
	interval := coordinator.DefaultRefreshInterval
	if w.config.RefreshInterval > 0 {
		interval = time.Duration(w.config.RefreshInterval) * time.Second
	}
	coordinator.RunPeriodicRefresh(w.stopCtx, interval, w.coord, w.buildRefresh, w.logger)
}

// Shutdown drains the worker's shutdown handles in reverse registration
// order, then shuts down the NG stack last, per spec.md §4.6 steps 6-7.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopCancel()

	w.mu.Lock()
	handles := make([]*stack.ShutdownHandle, len(w.shutdownHandles))
	copy(handles, w.shutdownHandles)
	w.mu.Unlock()

	var firstErr error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].GracefulShutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := w.ngap.GracefulShutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := w.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
