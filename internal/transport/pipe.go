package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// PipeTransport is an in-memory Transport used by tests to stand in for a
// kernel SCTP association, the same role common/dataplane's "simulated"
// backend plays for the real eBPF/XDP data plane in the teacher repo.
// Dialing a bind address that has an active PipeTransport listener wires
// the two ends together with buffered channels; messages preserve SCTP's
// whole-message delivery semantics (no stream framing).
type PipeTransport struct {
	mu        sync.Mutex
	listeners map[string]*pipeListener
}

// NewPipeTransport constructs an empty in-memory transport registry.
// Transports created with separate calls to NewPipeTransport are isolated
// from one another; share one instance between a mock peer and the worker
// under test so Dial can find the peer's Listen.
func NewPipeTransport() *PipeTransport {
	return &PipeTransport{listeners: make(map[string]*pipeListener)}
}

func (t *PipeTransport) Listen(ctx context.Context, bindAddr string, ppid uint32) (Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.listeners[bindAddr]; exists {
		return nil, fmt.Errorf("pipe transport: address %q already in use", bindAddr)
	}

	l := &pipeListener{
		addr:    pipeAddr(bindAddr),
		ppid:    ppid,
		incoming: make(chan *pipeConn, 8),
		closed:  make(chan struct{}),
	}
	t.listeners[bindAddr] = l
	return l, nil
}

func (t *PipeTransport) Dial(ctx context.Context, remoteAddr, bindAddr string, ppid uint32) (Conn, error) {
	t.mu.Lock()
	l, ok := t.listeners[remoteAddr]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("pipe transport: no listener at %q", remoteAddr)
	}

	id := nextPipeAssocID()
	clientSide, serverSide := newPipeConnPair(id, pipeAddr(bindAddr), l.addr)

	select {
	case l.incoming <- serverSide:
	case <-l.closed:
		return nil, fmt.Errorf("pipe transport: listener at %q closed", remoteAddr)
	}

	return clientSide, nil
}

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

var pipeAssocCounter uint32

func nextPipeAssocID() uint32 {
	return atomic.AddUint32(&pipeAssocCounter, 1)
}

type pipeListener struct {
	addr     pipeAddr
	ppid     uint32
	incoming chan *pipeConn
	closeOnce sync.Once
	closed   chan struct{}
}

func (l *pipeListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c, ok := <-l.incoming:
		if !ok {
			return nil, fmt.Errorf("pipe listener closed")
		}
		return c, nil
	case <-l.closed:
		return nil, fmt.Errorf("pipe listener closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *pipeListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *pipeListener) Addr() net.Addr { return l.addr }

// pipeConn is one end of an in-memory duplex association.
type pipeConn struct {
	assocID    uint32
	localAddr  pipeAddr
	remoteAddr pipeAddr
	in         <-chan []byte
	out        chan<- []byte
	closeOnce  sync.Once
	closed     chan struct{}
}

func newPipeConnPair(assocID uint32, clientAddr, serverAddr pipeAddr) (client, server *pipeConn) {
	aToB := make(chan []byte, 16)
	bToA := make(chan []byte, 16)
	closed := make(chan struct{})

	client = &pipeConn{assocID: assocID, localAddr: clientAddr, remoteAddr: serverAddr, in: bToA, out: aToB, closed: closed}
	server = &pipeConn{assocID: assocID, localAddr: serverAddr, remoteAddr: clientAddr, in: aToB, out: bToA, closed: closed}
	return client, server
}

func (c *pipeConn) Send(ctx context.Context, payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	select {
	case c.out <- buf:
		return nil
	case <-c.closed:
		return fmt.Errorf("pipe conn: association closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pipeConn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return nil, fmt.Errorf("pipe conn: association closed")
		}
		return msg, nil
	case <-c.closed:
		return nil, fmt.Errorf("pipe conn: association closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *pipeConn) RemoteAddr() net.Addr  { return c.remoteAddr }
func (c *pipeConn) AssociationID() uint32 { return c.assocID }

func (c *pipeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
