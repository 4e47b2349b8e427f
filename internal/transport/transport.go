// Package transport abstracts the SCTP association layer that every
// protocol stack (NGAP, F1AP, E1AP) runs over. spec.md treats SCTP as an
// opaque message-oriented reliable channel with association ids and
// payload-protocol identifiers; this package provides exactly that
// contract, backed by a real SCTP implementation for production and an
// in-memory pipe for tests.
package transport

import (
	"context"
	"net"
)

// Well-known bind ports and SCTP payload-protocol identifiers, TS 38.412 §7,
// TS 38.472 §7, TS 38.462.
const (
	NGAPPort = 38412
	NGAPPPID = 60

	F1APPort = 38472
	F1APPPID = 62

	E1APPort = 38462
	E1APPPID = 64
)

// Conn is one SCTP association. Send/Recv operate on whole messages —
// SCTP's message boundaries mean there is no framing layer above this.
type Conn interface {
	Send(ctx context.Context, payload []byte) error
	Recv(ctx context.Context) ([]byte, error)
	RemoteAddr() net.Addr
	AssociationID() uint32
	Close() error
}

// Listener accepts inbound associations on a bound SCTP endpoint.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
	Addr() net.Addr
}

// Transport is the provider of SCTP associations: a real kernel-backed
// implementation, or an in-memory stand-in for tests.
type Transport interface {
	Listen(ctx context.Context, bindAddr string, ppid uint32) (Listener, error)
	Dial(ctx context.Context, remoteAddr, bindAddr string, ppid uint32) (Conn, error)
}
