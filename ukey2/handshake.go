// Package ukey2 drives the initiator side of a UKEY2 v1 handshake over
// P-256: client-init construction, server-init validation, session-key
// derivation, and the PIN shown to both users for out-of-band
// verification.
package ukey2

import (
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"github.com/sage-x-project/nearbylink/cryptocore"
	"github.com/sage-x-project/nearbylink/proto"
)

const nextProtocol = "AES_256_CBC-HMAC_SHA256"

// Handshake drives one initiator-side UKEY2 exchange. Not safe for
// concurrent use; a session owns exactly one.
type Handshake struct {
	keyPair *cryptocore.KeyPair

	clientInitBytes   []byte
	clientFinishBytes []byte
	serverInitBytes   []byte
	peerKey           *proto.EcP256PublicKey
}

// New allocates a handshake with no state yet bound; call BuildClientInit
// to begin.
func New() *Handshake {
	return &Handshake{}
}

// BuildClientInit generates the ephemeral keypair, builds the
// commitment-bearing ClientInit message, and returns its full serialized
// outer Ukey2Message bytes ready to be sent as a frame.
func (h *Handshake) BuildClientInit() ([]byte, error) {
	kp, err := cryptocore.GenerateP256KeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	h.keyPair = kp

	x, y := kp.PublicXY()
	finished := &proto.Ukey2ClientFinished{
		PublicKey: (&proto.GenericPublicKey{
			Type:            proto.PublicKeyEcP256,
			EcP256PublicKey: &proto.EcP256PublicKey{X: x, Y: y},
		}).Marshal(),
	}
	h.clientFinishBytes = (&proto.Ukey2Message{
		MessageType: proto.Ukey2MessageClientFinish,
		MessageData: finished.Marshal(),
	}).Marshal()

	commitment := sha512.Sum512(h.clientFinishBytes)

	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return nil, fmt.Errorf("%w: random: %v", ErrKeyDerivation, err)
	}

	clientInit := &proto.Ukey2ClientInit{
		Version:      1,
		Random:       random,
		NextProtocol: nextProtocol,
		CipherCommitments: []proto.CipherCommitment{
			{HandshakeCipher: proto.HandshakeCipherP256Sha512, Commitment: commitment[:]},
		},
	}
	h.clientInitBytes = (&proto.Ukey2Message{
		MessageType: proto.Ukey2MessageClientInit,
		MessageData: clientInit.Marshal(),
	}).Marshal()

	return h.clientInitBytes, nil
}

// ValidateServerInit parses and validates an inbound ServerInit frame
// body. On success it records server_init_bytes and the peer's P-256
// public key (coordinates as received) for DeriveKeys and returns nil. On
// a protocol violation it
// returns a *ProtocolError carrying the Ukey2Alert that should be sent to
// the peer before terminating.
func (h *Handshake) ValidateServerInit(body []byte) error {
	var outer proto.Ukey2Message
	if err := outer.Unmarshal(body); err != nil {
		return newProtocolError(proto.Ukey2AlertBadMessageType, fmt.Sprintf("malformed outer message: %v", err))
	}
	if outer.MessageType != proto.Ukey2MessageServerInit {
		return newProtocolError(proto.Ukey2AlertBadMessageType, "expected ServerInit")
	}

	var si proto.Ukey2ServerInit
	if err := si.Unmarshal(outer.MessageData); err != nil {
		return newProtocolError(proto.Ukey2AlertBadMessageType, fmt.Sprintf("malformed server_init: %v", err))
	}

	if si.Version != 1 {
		return newProtocolError(proto.Ukey2AlertBadVersion, "server_init version != 1")
	}
	if len(si.Random) != 32 {
		return newProtocolError(proto.Ukey2AlertBadRandom, "server_init random != 32 bytes")
	}
	if si.HandshakeCipher != proto.HandshakeCipherP256Sha512 {
		return newProtocolError(proto.Ukey2AlertBadHandshakeCipher, "unsupported handshake cipher")
	}

	var pub proto.GenericPublicKey
	if err := pub.Unmarshal(si.PublicKey); err != nil {
		return newProtocolError(proto.Ukey2AlertBadPublicKey, fmt.Sprintf("malformed public_key: %v", err))
	}
	if pub.EcP256PublicKey == nil {
		return newProtocolError(proto.Ukey2AlertBadPublicKey, "missing ec_p256_public_key")
	}

	h.serverInitBytes = body
	h.peerKey = pub.EcP256PublicKey
	return nil
}

// DeriveKeys runs the ECDH + HKDF key ladder over client_init_bytes and
// server_init_bytes and returns the four session keys plus the raw auth
// secret. ValidateServerInit must have succeeded first.
func (h *Handshake) DeriveKeys() (*cryptocore.SessionKeys, error) {
	if h.peerKey == nil || h.serverInitBytes == nil {
		return nil, fmt.Errorf("%w: server_init not validated", ErrKeyDerivation)
	}

	secret, err := h.keyPair.DeriveSecret(h.peerKey.X, h.peerKey.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}

	keys, err := cryptocore.DeriveSessionKeys(secret, h.clientInitBytes, h.serverInitBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	return keys, nil
}

// Pin derives the 4-digit PIN from the session keys' auth secret.
func Pin(keys *cryptocore.SessionKeys) (string, error) {
	return cryptocore.DerivePIN(keys.Auth)
}

// ClientFinishBytes returns the full serialized ClientFinish message to
// send after key derivation succeeds.
func (h *Handshake) ClientFinishBytes() []byte { return h.clientFinishBytes }

// BuildAlert wraps an alert kind in the outer Ukey2Message with
// message_type fixed to Alert (the alert kind itself lives only in the
// inner Ukey2Alert.type), ready to send as a frame.
func BuildAlert(kind proto.Ukey2AlertType) []byte {
	alert := &proto.Ukey2Alert{Type: kind}
	return (&proto.Ukey2Message{
		MessageType: proto.Ukey2MessageAlert,
		MessageData: alert.Marshal(),
	}).Marshal()
}
