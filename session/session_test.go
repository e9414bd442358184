package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/nearbylink/cryptocore"
	"github.com/sage-x-project/nearbylink/envelope"
	"github.com/sage-x-project/nearbylink/proto"
	"github.com/sage-x-project/nearbylink/session/statusbus"
	"github.com/sage-x-project/nearbylink/wire"
)

// fakePeer plays the responder side of the handshake against a real
// Session, using cryptocore directly (no ukey2.Handshake, which is
// initiator-only) so the test exercises the full wire protocol.
type fakePeer struct {
	conn net.Conn
	kp   *cryptocore.KeyPair
	ci   []byte
	si   []byte
	env  *envelope.Envelope
}

func runFakePeer(t *testing.T, conn net.Conn) *fakePeer {
	t.Helper()
	p := &fakePeer{conn: conn}

	// 1. ConnectionRequest (plain)
	reqBody, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	var reqFrame proto.OfflineFrame
	require.NoError(t, reqFrame.Unmarshal(reqBody))
	require.Equal(t, proto.V1FrameConnectionRequest, reqFrame.V1.Type)

	// 2. ClientInit (plain)
	p.ci, err = wire.ReadFrame(conn)
	require.NoError(t, err)

	// 3. Build and send ServerInit
	kp, err := cryptocore.GenerateP256KeyPair()
	require.NoError(t, err)
	p.kp = kp
	x, y := kp.PublicXY()
	si := &proto.Ukey2ServerInit{
		Version:         1,
		Random:          make([]byte, 32),
		HandshakeCipher: proto.HandshakeCipherP256Sha512,
		PublicKey: (&proto.GenericPublicKey{
			Type:            proto.PublicKeyEcP256,
			EcP256PublicKey: &proto.EcP256PublicKey{X: x, Y: y},
		}).Marshal(),
	}
	p.si = (&proto.Ukey2Message{MessageType: proto.Ukey2MessageServerInit, MessageData: si.Marshal()}).Marshal()
	require.NoError(t, wire.WriteFrame(conn, p.si))

	// 4. ClientFinish (plain) -> learn client's ephemeral public key
	finishBody, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	var finishOuter proto.Ukey2Message
	require.NoError(t, finishOuter.Unmarshal(finishBody))
	require.Equal(t, proto.Ukey2MessageClientFinish, finishOuter.MessageType)
	var finished proto.Ukey2ClientFinished
	require.NoError(t, finished.Unmarshal(finishOuter.MessageData))
	var clientPub proto.GenericPublicKey
	require.NoError(t, clientPub.Unmarshal(finished.PublicKey))
	require.NotNil(t, clientPub.EcP256PublicKey)

	secret, err := kp.DeriveSecret(clientPub.EcP256PublicKey.X, clientPub.EcP256PublicKey.Y)
	require.NoError(t, err)
	keys, err := cryptocore.DeriveSessionKeys(secret, p.ci, p.si)
	require.NoError(t, err)

	// Server's send/recv direction is mirrored relative to the initiator's.
	p.env = envelope.New(&cryptocore.SessionKeys{
		EncryptKey:  keys.DecryptKey,
		SendHMACKey: keys.RecvHMACKey,
		DecryptKey:  keys.EncryptKey,
		RecvHMACKey: keys.SendHMACKey,
		Auth:        keys.Auth,
	})

	// 5. ConnectionResponse (encrypted)
	respBody, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	offline, err := p.env.DecryptFrame(respBody)
	require.NoError(t, err)
	require.Equal(t, proto.V1FrameConnectionResponse, offline.V1.Type)
	require.Equal(t, proto.ConnectionResponseAccept, offline.V1.ConnectionResponse.Response)

	return p
}

func newTestSession(t *testing.T) (*Session, net.Conn, *statusbus.Hub) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	hub := statusbus.NewHub()
	local := LocalEndpoint{ID: [4]byte{'a', 'b', 'c', 'd'}, Name: "test-host", DeviceType: DeviceTypeLaptop}
	s := NewOutbound(clientConn, local, [4]byte{'w', 'x', 'y', 'z'}, hub)
	return s, serverConn, hub
}

func TestSessionFullHandshakeAndEncryptedExchange(t *testing.T) {
	s, serverConn, _ := newTestSession(t)

	peerDone := make(chan *fakePeer, 1)
	go func() { peerDone <- runFakePeer(t, serverConn) }()

	require.NoError(t, s.Start())
	require.Equal(t, PhaseSentClientInit, s.Phase())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	peer := <-peerDone
	require.NotEmpty(t, s.PinCode())

	// Server now sends an encrypted KeepAlive; session should process it
	// without erroring and without terminating.
	keepAliveFrame := &proto.OfflineFrame{Version: 1, V1: &proto.V1Frame{Type: proto.V1FrameKeepAlive, KeepAlive: &proto.KeepAliveFrame{Ack: true}}}
	wireBytes, err := peer.env.EncryptFrame(keepAliveFrame)
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(serverConn, wireBytes))

	// Server sends Disconnection to end the session cleanly.
	discFrame := &proto.OfflineFrame{Version: 1, V1: &proto.V1Frame{Type: proto.V1FrameDisconnection, Disconnection: &proto.DisconnectionFrame{}}}
	wireBytes, err = peer.env.EncryptFrame(discFrame)
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(serverConn, wireBytes))

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate in time")
	}
	require.Equal(t, PhaseTerminated, s.Phase())
}

func TestSessionSendPayloadTwoChunks(t *testing.T) {
	s, serverConn, _ := newTestSession(t)

	peerDone := make(chan *fakePeer, 1)
	go func() { peerDone <- runFakePeer(t, serverConn) }()

	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go s.Run(ctx)

	peer := <-peerDone

	// Give Run's handleServerInit a moment to flip to Encrypted before we
	// try to send a payload on it.
	require.Eventually(t, func() bool { return s.Phase() == PhaseEncrypted }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.SendPayload([]byte("hello")))

	dataBody, err := wire.ReadFrame(serverConn)
	require.NoError(t, err)
	dataFrame, err := peer.env.DecryptFrame(dataBody)
	require.NoError(t, err)
	require.Equal(t, proto.V1FramePayloadTransfer, dataFrame.V1.Type)
	require.Equal(t, []byte("hello"), dataFrame.V1.PayloadTransfer.PayloadChunk.Body)
	require.EqualValues(t, 0, dataFrame.V1.PayloadTransfer.PayloadChunk.Offset)

	termBody, err := wire.ReadFrame(serverConn)
	require.NoError(t, err)
	termFrame, err := peer.env.DecryptFrame(termBody)
	require.NoError(t, err)
	require.EqualValues(t, 1, termFrame.V1.PayloadTransfer.PayloadChunk.Flags)
	require.EqualValues(t, 5, termFrame.V1.PayloadTransfer.PayloadChunk.Offset)
	require.Equal(t, dataFrame.V1.PayloadTransfer.PayloadHeader.ID, termFrame.V1.PayloadTransfer.PayloadHeader.ID)
}

func TestSessionCancelTransferPreKeyDerivationSendsPlaintextDisconnection(t *testing.T) {
	s, serverConn, hub := newTestSession(t)

	// Drain the ConnectionRequest and ClientInit frames before cancelling.
	go func() {
		wire.ReadFrame(serverConn)
		wire.ReadFrame(serverConn)
	}()
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	hub.Publish(statusbus.Message{SessionID: s.ID(), Direction: statusbus.DirectionFrontToLib, Action: statusbus.ActionCancelTransfer})

	discBody, err := wire.ReadFrame(serverConn)
	require.NoError(t, err)
	var disc proto.OfflineFrame
	require.NoError(t, disc.Unmarshal(discBody)) // succeeds only if sent plaintext
	require.Equal(t, proto.V1FrameDisconnection, disc.V1.Type)

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("session did not terminate after cancel")
	}
	require.Equal(t, PhaseTerminated, s.Phase())
}

func TestSessionSendAfterTerminateReturnsErrTerminated(t *testing.T) {
	s, serverConn, hub := newTestSession(t)
	go func() {
		wire.ReadFrame(serverConn)
		wire.ReadFrame(serverConn)
	}()
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	hub.Publish(statusbus.Message{SessionID: s.ID(), Direction: statusbus.DirectionFrontToLib, Action: statusbus.ActionCancelTransfer})

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("session did not terminate after cancel")
	}
	require.Equal(t, PhaseTerminated, s.Phase())

	require.ErrorIs(t, s.SendPayload([]byte("too late")), ErrTerminated)
	require.ErrorIs(t, s.SendKeepalive(false), ErrTerminated)
}

func TestSessionControlMessageWithMismatchedIDIsIgnored(t *testing.T) {
	s, serverConn, hub := newTestSession(t)
	go func() {
		wire.ReadFrame(serverConn)
		wire.ReadFrame(serverConn)
	}()
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	hub.Publish(statusbus.Message{SessionID: "not-this-session", Direction: statusbus.DirectionFrontToLib, Action: statusbus.ActionCancelTransfer})

	err := <-runDone
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, PhaseSentClientInit, s.Phase())
}
