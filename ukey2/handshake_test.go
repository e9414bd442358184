package ukey2

import (
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/nearbylink/cryptocore"
	"github.com/sage-x-project/nearbylink/proto"
)

// serverInitBytes is a minimal stand-in for the responder, used only to
// build fixtures the client-side Handshake can validate against.
func serverInitBytes(t *testing.T, serverKP *cryptocore.KeyPair) []byte {
	t.Helper()
	x, y := serverKP.PublicXY()
	si := &proto.Ukey2ServerInit{
		Version:         1,
		Random:          make([]byte, 32),
		HandshakeCipher: proto.HandshakeCipherP256Sha512,
		PublicKey: (&proto.GenericPublicKey{
			Type:            proto.PublicKeyEcP256,
			EcP256PublicKey: &proto.EcP256PublicKey{X: x, Y: y},
		}).Marshal(),
	}
	return (&proto.Ukey2Message{MessageType: proto.Ukey2MessageServerInit, MessageData: si.Marshal()}).Marshal()
}

func TestHandshakeFullExchange(t *testing.T) {
	h := New()
	clientInit, err := h.BuildClientInit()
	require.NoError(t, err)
	require.NotEmpty(t, clientInit)

	// commitment property: SHA-512(client_finish_bytes) equals the
	// commitment embedded in the ClientInit sent.
	var outer proto.Ukey2Message
	require.NoError(t, outer.Unmarshal(clientInit))
	var ci proto.Ukey2ClientInit
	require.NoError(t, ci.Unmarshal(outer.MessageData))
	sum := sha512.Sum512(h.ClientFinishBytes())
	require.Equal(t, sum[:], ci.CipherCommitments[0].Commitment)

	serverKP, err := cryptocore.GenerateP256KeyPair()
	require.NoError(t, err)

	require.NoError(t, h.ValidateServerInit(serverInitBytes(t, serverKP)))

	keys, err := h.DeriveKeys()
	require.NoError(t, err)
	require.Len(t, keys.EncryptKey, 32)
	require.Len(t, keys.DecryptKey, 32)
	require.NotEqual(t, keys.EncryptKey, keys.DecryptKey)

	pin, err := Pin(keys)
	require.NoError(t, err)
	require.Len(t, pin, 4)
}

func TestValidateServerInitRejectsWrongMessageType(t *testing.T) {
	h := New()
	_, err := h.BuildClientInit()
	require.NoError(t, err)

	badOuter := (&proto.Ukey2Message{MessageType: proto.Ukey2MessageClientInit, MessageData: []byte("x")}).Marshal()
	err = h.ValidateServerInit(badOuter)
	require.Error(t, err)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, proto.Ukey2AlertBadMessageType, perr.Alert)
}

func TestValidateServerInitRejectsBadVersion(t *testing.T) {
	h := New()
	_, err := h.BuildClientInit()
	require.NoError(t, err)

	serverKP, err := cryptocore.GenerateP256KeyPair()
	require.NoError(t, err)
	x, y := serverKP.PublicXY()
	si := &proto.Ukey2ServerInit{
		Version:         2,
		Random:          make([]byte, 32),
		HandshakeCipher: proto.HandshakeCipherP256Sha512,
		PublicKey: (&proto.GenericPublicKey{
			Type:            proto.PublicKeyEcP256,
			EcP256PublicKey: &proto.EcP256PublicKey{X: x, Y: y},
		}).Marshal(),
	}
	outer := (&proto.Ukey2Message{MessageType: proto.Ukey2MessageServerInit, MessageData: si.Marshal()}).Marshal()

	err = h.ValidateServerInit(outer)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, proto.Ukey2AlertBadVersion, perr.Alert)
}

func TestValidateServerInitRejectsBadRandomLength(t *testing.T) {
	h := New()
	_, err := h.BuildClientInit()
	require.NoError(t, err)

	serverKP, err := cryptocore.GenerateP256KeyPair()
	require.NoError(t, err)
	x, y := serverKP.PublicXY()
	si := &proto.Ukey2ServerInit{
		Version:         1,
		Random:          make([]byte, 16),
		HandshakeCipher: proto.HandshakeCipherP256Sha512,
		PublicKey: (&proto.GenericPublicKey{
			Type:            proto.PublicKeyEcP256,
			EcP256PublicKey: &proto.EcP256PublicKey{X: x, Y: y},
		}).Marshal(),
	}
	outer := (&proto.Ukey2Message{MessageType: proto.Ukey2MessageServerInit, MessageData: si.Marshal()}).Marshal()

	err = h.ValidateServerInit(outer)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, proto.Ukey2AlertBadRandom, perr.Alert)
}

func TestValidateServerInitRejectsMissingPublicKey(t *testing.T) {
	h := New()
	_, err := h.BuildClientInit()
	require.NoError(t, err)

	si := &proto.Ukey2ServerInit{
		Version:         1,
		Random:          make([]byte, 32),
		HandshakeCipher: proto.HandshakeCipherP256Sha512,
		PublicKey:       (&proto.GenericPublicKey{Type: proto.PublicKeyEcP256}).Marshal(),
	}
	outer := (&proto.Ukey2Message{MessageType: proto.Ukey2MessageServerInit, MessageData: si.Marshal()}).Marshal()

	err = h.ValidateServerInit(outer)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, proto.Ukey2AlertBadPublicKey, perr.Alert)
}

func TestBuildAlertFixesOuterMessageType(t *testing.T) {
	wire := BuildAlert(proto.Ukey2AlertBadMessageType)
	var outer proto.Ukey2Message
	require.NoError(t, outer.Unmarshal(wire))
	require.Equal(t, proto.Ukey2MessageAlert, outer.MessageType)

	var alert proto.Ukey2Alert
	require.NoError(t, alert.Unmarshal(outer.MessageData))
	require.Equal(t, proto.Ukey2AlertBadMessageType, alert.Type)
}

func TestPeerCoordinateNormalizationAcceptsShortAndLongCoords(t *testing.T) {
	// Boundary behavior from the spec: x/y of length 31 accepted as-is;
	// length 33 right-truncated to the last 32 bytes.
	short := make([]byte, 31)
	require.Len(t, cryptocore.NormalizeCoord(short), 31)

	long := make([]byte, 33)
	long[0] = 0xAA
	norm := cryptocore.NormalizeCoord(long)
	require.Len(t, norm, 32)
	require.NotEqual(t, byte(0xAA), norm[0])
}
