// Package stack implements the generic SCTP-based protocol stack described
// in spec.md §4.1: per-interface listen/connect, transaction-id allocation
// and correlation, and indication dispatch to an installed handler. NGAP,
// F1AP, and E1AP are each a thin set of Procedure/Indication descriptors
// (internal/ngap, internal/f1ap, internal/e1ap) layered on one shared Stack
// implementation, following the "Dynamic dispatch over Procedure" design
// note in spec.md §9.
package stack

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/metrics"
	"github.com/your-org/gnb-cu-cp/internal/transport"
	"github.com/your-org/gnb-cu-cp/internal/txn"
)

// AssociationState is the state machine of spec.md §4.1: Listening →
// Associating → Up → Draining → Closed, with Up → Associating on SCTP
// reset.
type AssociationState int

const (
	StateListening AssociationState = iota
	StateAssociating
	StateUp
	StateDraining
	StateClosed
)

func (s AssociationState) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateAssociating:
		return "associating"
	case StateUp:
		return "up"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultRequestTimeout is the protocol-specific default request deadline
// of spec.md §5 ("~5s"). It is a var, not a const, so tests can shrink it.
var DefaultRequestTimeout = 5 * time.Second

// Handler receives unsolicited PDUs: InitiatingMessages that do not
// correlate with a locally outstanding request, and Indications. It must
// not block the stack's read loop; the read loop always invokes it in its
// own goroutine.
type Handler func(ctx context.Context, env Envelope)

// Procedure describes one request/response procedure of a protocol family:
// how to encode the request payload and decode the two possible outcomes.
// The transaction-id width is not part of the descriptor: it is the idBits
// argument given to New for the whole stack.
type Procedure[Req any, Succ any, Fail any] struct {
	Name          string
	Code          uint32
	EncodeRequest func(Req) ([]byte, error)
	DecodeSuccess func([]byte) (Succ, error)
	DecodeFailure func([]byte) (Fail, error)
}

// Indication describes a one-way message: no response, no correlation.
type Indication[Msg any] struct {
	Name   string
	Code   uint32
	Encode func(Msg) ([]byte, error)
}

// Stack is one SCTP-based protocol stack instance (NGAP, F1AP, or E1AP).
// This revision supports at most one active association at a time, per
// spec.md §3's Peer Association Non-goal.
type Stack struct {
	Name        string
	transport   transport.Transport
	codec       Codec
	ppid        uint32
	idBits      uint

	mu      sync.RWMutex
	conn    transport.Conn
	state   AssociationState
	handler Handler

	ln transport.Listener

	idMu   sync.Mutex
	nextID uint32

	pending *txn.Table[uint32, Envelope]

	logger *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs a Stack with no active association (state Listening,
// meaning "not yet up" until Listen or Connect is called).
func New(name string, tr transport.Transport, codec Codec, ppid uint32, idBits uint, logger *zap.Logger) *Stack {
	return &Stack{
		Name:      name,
		transport: tr,
		codec:     codec,
		ppid:      ppid,
		idBits:    idBits,
		state:     StateListening,
		pending:   txn.NewTable[uint32, Envelope](),
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// ShutdownHandle lets the owner later drain and close what Listen/Connect
// started.
type ShutdownHandle struct {
	stack *Stack
}

// GracefulShutdown stops accepting, drains the current association, and
// closes it.
func (h *ShutdownHandle) GracefulShutdown(ctx context.Context) error {
	return h.stack.GracefulShutdown(ctx)
}

// Listen binds an SCTP endpoint and accepts associations, installing
// handler for unsolicited PDUs on each.
func (s *Stack) Listen(ctx context.Context, bindAddr string, handler Handler, logger *zap.Logger) (*ShutdownHandle, error) {
	ln, err := s.transport.Listen(ctx, bindAddr, s.ppid)
	if err != nil {
		return nil, newError(KindTransport, "listen", err)
	}

	s.mu.Lock()
	s.ln = ln
	s.handler = handler
	s.state = StateListening
	s.mu.Unlock()

	go s.acceptLoop(ln, logger)

	return &ShutdownHandle{stack: s}, nil
}

func (s *Stack) acceptLoop(ln transport.Listener, logger *zap.Logger) {
	for {
		conn, err := ln.Accept(context.Background())
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				logger.Warn("accept failed", zap.String("stack", s.Name), zap.Error(err))
				return
			}
		}

		s.mu.Lock()
		if s.conn != nil {
			// Single active association per interface in this revision:
			// a fresh inbound association replaces the old one.
			_ = s.conn.Close()
		}
		s.conn = conn
		s.state = StateUp
		s.mu.Unlock()
		metrics.SetAssociationUp(s.Name, true)

		logger.Info("association up",
			zap.String("stack", s.Name),
			zap.String("remote", conn.RemoteAddr().String()),
			zap.Uint32("association_id", conn.AssociationID()),
		)

		go s.readLoop(conn, logger)
	}
}

// Connect initiates an outbound association and installs handler.
func (s *Stack) Connect(ctx context.Context, remoteAddr, bindAddr string, handler Handler, logger *zap.Logger) error {
	s.mu.Lock()
	s.state = StateAssociating
	s.mu.Unlock()

	conn, err := s.transport.Dial(ctx, remoteAddr, bindAddr, s.ppid)
	if err != nil {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		return newError(KindTransport, "connect", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.handler = handler
	s.state = StateUp
	s.mu.Unlock()
	metrics.SetAssociationUp(s.Name, true)

	logger.Info("association up",
		zap.String("stack", s.Name),
		zap.String("remote", remoteAddr),
	)

	go s.readLoop(conn, logger)

	return nil
}

func (s *Stack) readLoop(conn transport.Conn, logger *zap.Logger) {
	ctx := context.Background()
	for {
		raw, err := conn.Recv(ctx)
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.state = StateAssociating
				s.conn = nil
			}
			s.mu.Unlock()
			metrics.SetAssociationUp(s.Name, false)
			logger.Warn("association reset", zap.String("stack", s.Name), zap.Error(err))
			return
		}

		env, err := s.codec.DecodeEnvelope(raw)
		if err != nil {
			logger.Warn("dropped undecodable PDU", zap.String("stack", s.Name), zap.Error(err))
			continue
		}

		switch env.Kind {
		case KindSuccessfulOutcome, KindUnsuccessfulOutcome:
			if !s.pending.Match(env.TransactionID, env) {
				logger.Warn("dropped unsolicited outcome (no matching pending request)",
					zap.String("stack", s.Name),
					zap.Uint32("transaction_id", env.TransactionID),
				)
			}
		default:
			s.mu.RLock()
			h := s.handler
			s.mu.RUnlock()
			if h != nil {
				go h(ctx, env)
			} else {
				logger.Warn("dropped PDU with no registered handler", zap.String("stack", s.Name))
			}
		}
	}
}

// allocateID assigns a monotonic transaction id, skipping ids already in
// use, within the protocol's id space. Exhausting the whole space without
// finding a free id is a fatal programming error (spec.md §4.1).
func (s *Stack) allocateID() (uint32, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	space := uint32(1) << s.idBits
	start := s.nextID
	for {
		id := s.nextID
		s.nextID = (s.nextID + 1) % space
		if !s.pending.Has(id) {
			return id, nil
		}
		if s.nextID == start {
			return 0, fmt.Errorf("transaction id space exhausted (%d bits)", s.idBits)
		}
	}
}

func (s *Stack) activeConn() transport.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Request assigns a fresh transaction id, encodes and sends the initiating
// PDU for proc, and awaits the correlated response. This is a free
// function rather than a method because Go does not allow a method to
// introduce its own type parameters.
func Request[Req any, Succ any, Fail any](ctx context.Context, s *Stack, proc Procedure[Req, Succ, Fail], req Req, logger *zap.Logger) (Succ, error) {
	var zero Succ
	start := time.Now()
	outcome := "internal_error"
	defer func() {
		metrics.RequestsTotal.WithLabelValues(s.Name, proc.Name, outcome).Inc()
		metrics.RequestDuration.WithLabelValues(s.Name, proc.Name).Observe(time.Since(start).Seconds())
	}()

	conn := s.activeConn()
	if conn == nil {
		outcome = "no_association"
		return zero, noAssociation[Fail](proc.Name)
	}

	payload, err := proc.EncodeRequest(req)
	if err != nil {
		outcome = "encode_error"
		return zero, encodeFailed[Fail](proc.Name, err)
	}

	id, err := s.allocateID()
	if err != nil {
		return zero, &RequestError[Fail]{Kind: KindInternal, Err: err}
	}

	slot, _ := s.pending.Register(id)

	env := Envelope{ProcedureCode: proc.Code, TransactionID: id, Kind: KindInitiatingMessage, Payload: payload}
	wire, err := s.codec.EncodeEnvelope(env)
	if err != nil {
		s.pending.Remove(id, slot)
		outcome = "encode_error"
		return zero, encodeFailed[Fail](proc.Name, err)
	}

	logger.Debug("request >>", zap.String("stack", s.Name), zap.String("procedure", proc.Name), zap.Uint32("transaction_id", id))

	if err := conn.Send(ctx, wire); err != nil {
		s.pending.Remove(id, slot)
		outcome = "transport_error"
		return zero, transportFailed[Fail](proc.Name, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	replyEnv, err := slot.Recv(timeoutCtx)
	if err != nil {
		s.pending.Remove(id, slot)
		if timeoutCtx.Err() != nil {
			outcome = "timeout"
			return zero, timedOut[Fail](proc.Name)
		}
		outcome = "peer_reset"
		return zero, peerReset[Fail](proc.Name)
	}

	if replyEnv.Kind == KindUnsuccessfulOutcome {
		failure, derr := proc.DecodeFailure(replyEnv.Payload)
		if derr != nil {
			outcome = "decode_error"
			return zero, decodeFailed[Fail](proc.Name, derr)
		}
		logger.Debug("unsuccessful outcome <<", zap.String("stack", s.Name), zap.String("procedure", proc.Name))
		outcome = "unsuccessful_outcome"
		return zero, unsuccessfulOutcome(proc.Name, failure, fmt.Errorf("%s: unsuccessful outcome", proc.Name))
	}

	success, derr := proc.DecodeSuccess(replyEnv.Payload)
	if derr != nil {
		outcome = "decode_error"
		return zero, decodeFailed[Fail](proc.Name, derr)
	}

	logger.Debug("success <<", zap.String("stack", s.Name), zap.String("procedure", proc.Name))
	outcome = "success"
	return success, nil
}

// SendIndication encodes and sends a one-way message; there is no
// correlation and no response to await.
func SendIndication[Msg any](ctx context.Context, s *Stack, ind Indication[Msg], msg Msg, logger *zap.Logger) error {
	conn := s.activeConn()
	if conn == nil {
		return newError(KindTransport, ind.Name, fmt.Errorf("no active association"))
	}

	payload, err := ind.Encode(msg)
	if err != nil {
		return newError(KindCodec, ind.Name, err)
	}

	env := Envelope{ProcedureCode: ind.Code, Kind: KindIndicationMessage, Payload: payload}
	wire, err := s.codec.EncodeEnvelope(env)
	if err != nil {
		return newError(KindCodec, ind.Name, err)
	}

	logger.Debug("indication >>", zap.String("stack", s.Name), zap.String("indication", ind.Name))

	if err := conn.Send(ctx, wire); err != nil {
		return newError(KindTransport, ind.Name, err)
	}
	return nil
}

// RespondSuccess and RespondFailure are used by handlers that must reply to
// an InitiatingMessage they received (e.g. F1SetupResponse to
// F1SetupRequest) using the transaction id carried on the inbound Envelope.
func RespondSuccess[Succ any](ctx context.Context, s *Stack, code uint32, txID uint32, encode func(Succ) ([]byte, error), resp Succ, logger *zap.Logger) error {
	return respond(ctx, s, code, txID, KindSuccessfulOutcome, func() ([]byte, error) { return encode(resp) }, logger)
}

func RespondFailure[Fail any](ctx context.Context, s *Stack, code uint32, txID uint32, encode func(Fail) ([]byte, error), fail Fail, logger *zap.Logger) error {
	return respond(ctx, s, code, txID, KindUnsuccessfulOutcome, func() ([]byte, error) { return encode(fail) }, logger)
}

func respond(ctx context.Context, s *Stack, code uint32, txID uint32, kind Kind, encode func() ([]byte, error), logger *zap.Logger) error {
	conn := s.activeConn()
	if conn == nil {
		return newError(KindTransport, "respond", fmt.Errorf("no active association"))
	}

	payload, err := encode()
	if err != nil {
		return newError(KindCodec, "respond", err)
	}

	env := Envelope{ProcedureCode: code, TransactionID: txID, Kind: kind, Payload: payload}
	wire, err := s.codec.EncodeEnvelope(env)
	if err != nil {
		return newError(KindCodec, "respond", err)
	}

	if err := conn.Send(ctx, wire); err != nil {
		return newError(KindTransport, "respond", err)
	}
	return nil
}

// RemoteTNLAAddresses reports the set of remote addresses with an active
// association — empty iff the interface is down, per spec.md §3's
// up-state derivation rule.
func (s *Stack) RemoteTNLAAddresses() []net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return []net.Addr{s.conn.RemoteAddr()}
}

// IsUp reports whether the stack currently has an active association.
func (s *Stack) IsUp() bool {
	return len(s.RemoteTNLAAddresses()) > 0
}

// State reports the current AssociationState.
func (s *Stack) State() AssociationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// GracefulShutdown stops accepting new associations and closes the active
// one, draining in-flight requests first: it waits until no request is
// pending, or until ctx is done, before closing.
func (s *Stack) GracefulShutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)

		s.mu.Lock()
		s.state = StateDraining
		ln := s.ln
		conn := s.conn
		s.mu.Unlock()

		if ln != nil {
			_ = ln.Close()
		}
	drain:
		for s.pending.Len() > 0 {
			select {
			case <-ctx.Done():
				break drain
			case <-time.After(10 * time.Millisecond):
			}
		}
		if conn != nil {
			err = conn.Close()
		}

		s.mu.Lock()
		s.state = StateClosed
		s.conn = nil
		s.mu.Unlock()
		metrics.SetAssociationUp(s.Name, false)
	})
	return err
}
