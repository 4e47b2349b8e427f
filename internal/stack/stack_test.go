package stack

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/gnb-cu-cp/internal/transport"
)

type pingReq struct{ Text string }
type pingSucc struct{ Echo string }
type pingFail struct{ Reason string }

var pingProc = Procedure[pingReq, pingSucc, pingFail]{
	Name: "Ping",
	Code: 1,
	EncodeRequest: func(r pingReq) ([]byte, error) { return json.Marshal(r) },
	DecodeSuccess: func(b []byte) (pingSucc, error) {
		var s pingSucc
		err := json.Unmarshal(b, &s)
		return s, err
	},
	DecodeFailure: func(b []byte) (pingFail, error) {
		var f pingFail
		err := json.Unmarshal(b, &f)
		return f, err
	},
}

func testPair(t *testing.T) (client, server *Stack, pt *transport.PipeTransport) {
	t.Helper()
	pt = transport.NewPipeTransport()
	logger := zap.NewNop()

	client = New("client", pt, JSONCodec{}, 1, 16, logger)
	server = New("server", pt, JSONCodec{}, 1, 16, logger)

	_, err := server.Listen(context.Background(), "server-addr", nil, logger)
	require.NoError(t, err)

	return client, server, pt
}

func TestRequestSuccessRoundTrip(t *testing.T) {
	client, server, _ := testPair(t)
	logger := zap.NewNop()

	serverHandler := func(ctx context.Context, env Envelope) {}
	_ = serverHandler

	// Install a handler on the server side that answers initiating messages.
	// Since the server's handler is set at Listen time, wire it directly by
	// reassigning before the client connects.
	done := make(chan struct{})
	server.handler = func(ctx context.Context, env Envelope) {
		defer close(done)
		assert.Equal(t, KindInitiatingMessage, env.Kind)
		var req pingReq
		require.NoError(t, json.Unmarshal(env.Payload, &req))
		_ = RespondSuccess[pingSucc](context.Background(), server, pingProc.Code, env.TransactionID,
			func(s pingSucc) ([]byte, error) { return json.Marshal(s) },
			pingSucc{Echo: "echo:" + req.Text}, logger)
	}

	err := client.Connect(context.Background(), "server-addr", "client-addr", nil, logger)
	require.NoError(t, err)

	succ, err := Request(context.Background(), client, pingProc, pingReq{Text: "hi"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", succ.Echo)

	<-done
}

func TestRequestTimesOutWithNoResponder(t *testing.T) {
	orig := DefaultRequestTimeout
	DefaultRequestTimeout = 20 * time.Millisecond
	defer func() { DefaultRequestTimeout = orig }()

	client, _, _ := testPair(t)
	logger := zap.NewNop()

	require.NoError(t, client.Connect(context.Background(), "server-addr", "client-addr", nil, logger))

	_, err := Request(context.Background(), client, pingProc, pingReq{Text: "hi"}, logger)
	require.Error(t, err)

	var reqErr *RequestError[pingFail]
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindTimeout, reqErr.Kind)
}

func TestRequestWithNoAssociationFailsFast(t *testing.T) {
	pt := transport.NewPipeTransport()
	logger := zap.NewNop()
	client := New("client", pt, JSONCodec{}, 1, 16, logger)

	_, err := Request(context.Background(), client, pingProc, pingReq{Text: "hi"}, logger)
	require.Error(t, err)

	var reqErr *RequestError[pingFail]
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindTransport, reqErr.Kind)
}

func TestUnsolicitedOutcomeIsDroppedNotDelivered(t *testing.T) {
	client, server, _ := testPair(t)
	logger := zap.NewNop()

	require.NoError(t, client.Connect(context.Background(), "server-addr", "client-addr", nil, logger))

	// Server sends an outcome for a transaction id the client never
	// registered; the client's read loop must drop it silently rather than
	// panicking or blocking, satisfying the "late unknown-id reply" property.
	go func() {
		conn := server.activeConn()
		for conn == nil {
			time.Sleep(time.Millisecond)
			conn = server.activeConn()
		}
		env := Envelope{ProcedureCode: 1, TransactionID: 999, Kind: KindSuccessfulOutcome, Payload: []byte(`{}`)}
		wire, err := server.codec.EncodeEnvelope(env)
		require.NoError(t, err)
		require.NoError(t, conn.Send(context.Background(), wire))
	}()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, client.pending.Len())
}

func TestAllocateIDSkipsPending(t *testing.T) {
	pt := transport.NewPipeTransport()
	logger := zap.NewNop()
	s := New("s", pt, JSONCodec{}, 1, 4, logger)

	id0, err := s.allocateID()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id0)

	slot, _ := s.pending.Register(id0)
	defer s.pending.Remove(id0, slot)

	id1, err := s.allocateID()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id1)
}

func TestRemoteTNLAAddressesReflectsAssociationState(t *testing.T) {
	client, _, _ := testPair(t)
	logger := zap.NewNop()

	assert.Empty(t, client.RemoteTNLAAddresses())
	assert.False(t, client.IsUp())

	require.NoError(t, client.Connect(context.Background(), "server-addr", "client-addr", nil, logger))
	assert.NotEmpty(t, client.RemoteTNLAAddresses())
	assert.True(t, client.IsUp())
}

func TestGracefulShutdownClosesAssociation(t *testing.T) {
	client, _, _ := testPair(t)
	logger := zap.NewNop()
	require.NoError(t, client.Connect(context.Background(), "server-addr", "client-addr", nil, logger))

	require.NoError(t, client.GracefulShutdown(context.Background()))
	assert.Equal(t, StateClosed, client.State())
}
