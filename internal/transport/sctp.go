package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/ishidawataru/sctp"
)

// SCTPTransport is the production Transport, backed by the kernel SCTP
// stack via github.com/ishidawataru/sctp.
type SCTPTransport struct{}

// NewSCTPTransport constructs the real SCTP-backed transport.
func NewSCTPTransport() *SCTPTransport { return &SCTPTransport{} }

func (t *SCTPTransport) Listen(ctx context.Context, bindAddr string, ppid uint32) (Listener, error) {
	laddr, err := sctp.ResolveSCTPAddr("sctp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve sctp bind address %q: %w", bindAddr, err)
	}

	ln, err := sctp.ListenSCTP("sctp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen sctp on %q: %w", bindAddr, err)
	}

	return &sctpListener{ln: ln, ppid: ppid}, nil
}

func (t *SCTPTransport) Dial(ctx context.Context, remoteAddr, bindAddr string, ppid uint32) (Conn, error) {
	raddr, err := sctp.ResolveSCTPAddr("sctp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve sctp remote address %q: %w", remoteAddr, err)
	}

	var laddr *sctp.SCTPAddr
	if bindAddr != "" {
		laddr, err = sctp.ResolveSCTPAddr("sctp", bindAddr+":0")
		if err != nil {
			return nil, fmt.Errorf("resolve sctp bind address %q: %w", bindAddr, err)
		}
	}

	conn, err := sctp.DialSCTP("sctp", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial sctp %q: %w", remoteAddr, err)
	}

	return &sctpConn{conn: conn, ppid: ppid}, nil
}

type sctpListener struct {
	ln   *sctp.SCTPListener
	ppid uint32
}

func (l *sctpListener) Accept(ctx context.Context) (Conn, error) {
	c, err := l.ln.AcceptSCTP()
	if err != nil {
		return nil, fmt.Errorf("accept sctp association: %w", err)
	}
	return &sctpConn{conn: c, ppid: l.ppid}, nil
}

func (l *sctpListener) Close() error { return l.ln.Close() }
func (l *sctpListener) Addr() net.Addr {
	return l.ln.Addr()
}

// sctpConn adapts *sctp.SCTPConn to the Conn interface. The association id
// is whatever the kernel reports on the first successful read via
// SndRcvInfo.AssocID; until a message has been read, AssociationID reports
// the sentinel value 0, which is acceptable because no caller inspects it
// before the association has exchanged at least one message.
type sctpConn struct {
	conn    *sctp.SCTPConn
	ppid    uint32
	assocID uint32
}

func (c *sctpConn) Send(ctx context.Context, payload []byte) error {
	info := &sctp.SndRcvInfo{PPID: c.ppid}
	_, err := c.conn.SCTPWrite(payload, info)
	if err != nil {
		return fmt.Errorf("sctp write: %w", err)
	}
	return nil
}

func (c *sctpConn) Recv(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 65535)
	n, info, err := c.conn.SCTPRead(buf)
	if err != nil {
		return nil, fmt.Errorf("sctp read: %w", err)
	}
	if info != nil {
		c.assocID = uint32(info.AssocID)
	}
	return buf[:n], nil
}

func (c *sctpConn) RemoteAddr() net.Addr   { return c.conn.RemoteAddr() }
func (c *sctpConn) AssociationID() uint32  { return c.assocID }
func (c *sctpConn) Close() error           { return c.conn.Close() }
