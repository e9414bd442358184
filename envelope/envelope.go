// Package envelope implements the Encrypt-then-MAC secure envelope (C4):
// AES-256-CBC encryption under HMAC-SHA-256 authentication, with
// per-direction monotonic sequence numbers binding each ciphertext to
// its position in the session.
package envelope

import (
	"errors"
	"fmt"

	"github.com/sage-x-project/nearbylink/cryptocore"
	"github.com/sage-x-project/nearbylink/proto"
)

var (
	// ErrSignatureMismatch is returned when the HMAC over an inbound
	// HeaderAndBody does not match its signature. Fatal: no alert is
	// sent back since the keys themselves may be compromised.
	ErrSignatureMismatch = errors.New("envelope: hmac signature mismatch")
	// ErrSequenceMismatch is returned when an inbound D2D message's
	// sequence number is not exactly the previous value plus one.
	ErrSequenceMismatch = errors.New("envelope: sequence number mismatch")
	// ErrProtobufDecode wraps malformed-message failures while parsing
	// an inbound envelope.
	ErrProtobufDecode = errors.New("envelope: malformed message")
)

// Envelope holds the four UKEY2-derived symmetric keys and the
// per-direction sequence counters for one session. Zero value is not
// usable; construct with New.
type Envelope struct {
	encryptKey  []byte
	sendHMACKey []byte
	decryptKey  []byte
	recvHMACKey []byte

	serverSeq int32 // this peer's send counter
	clientSeq int32 // this peer's receive counter
}

// New constructs an Envelope from the four derived session keys. Matches
// the initiator's point of view: encrypt/send-hmac key the outbound
// direction, decrypt/recv-hmac key the inbound direction.
func New(keys *cryptocore.SessionKeys) *Envelope {
	return &Envelope{
		encryptKey:  keys.EncryptKey,
		sendHMACKey: keys.SendHMACKey,
		decryptKey:  keys.DecryptKey,
		recvHMACKey: keys.RecvHMACKey,
	}
}

// ServerSeq returns the current outbound sequence counter (for tests and
// status reporting).
func (e *Envelope) ServerSeq() int32 { return e.serverSeq }

// ClientSeq returns the current inbound sequence counter.
func (e *Envelope) ClientSeq() int32 { return e.clientSeq }

// EncryptFrame wraps an OfflineFrame in a DeviceToDeviceMessage,
// encrypts it, signs the result, and returns the serialized SecureMessage
// ready to be sent as a wire frame.
func (e *Envelope) EncryptFrame(frame *proto.OfflineFrame) ([]byte, error) {
	e.serverSeq++

	d2d := &proto.DeviceToDeviceMessage{
		SequenceNumber: e.serverSeq,
		Message:        frame.Marshal(),
	}

	iv, ciphertext, err := cryptocore.EncryptCBC(e.encryptKey, d2d.Marshal())
	if err != nil {
		return nil, fmt.Errorf("envelope: encrypt: %w", err)
	}

	header := &proto.Header{
		EncryptionScheme: proto.EncryptionSchemeAES256CBC,
		SignatureScheme:  proto.SignatureSchemeHMACSha256,
		IV:               iv,
		PublicMetadata: (&proto.GcmMetadata{
			Type:    proto.GcmMetadataDeviceToDeviceMessage,
			Version: 1,
		}).Marshal(),
	}
	hb := &proto.HeaderAndBody{Header: header, Body: ciphertext}
	hbBytes := hb.Marshal()

	sig := cryptocore.ComputeHMAC(e.sendHMACKey, hbBytes)

	secure := &proto.SecureMessage{HeaderAndBody: hbBytes, Signature: sig}
	return secure.Marshal(), nil
}

// DecryptFrame verifies and decrypts a serialized SecureMessage, checks
// the D2D sequence number, and returns the enclosed OfflineFrame.
func (e *Envelope) DecryptFrame(secureMessageBytes []byte) (*proto.OfflineFrame, error) {
	var secure proto.SecureMessage
	if err := secure.Unmarshal(secureMessageBytes); err != nil {
		return nil, fmt.Errorf("%w: secure_message: %v", ErrProtobufDecode, err)
	}

	if !cryptocore.VerifyHMAC(e.recvHMACKey, secure.HeaderAndBody, secure.Signature) {
		return nil, ErrSignatureMismatch
	}

	var hb proto.HeaderAndBody
	if err := hb.Unmarshal(secure.HeaderAndBody); err != nil {
		return nil, fmt.Errorf("%w: header_and_body: %v", ErrProtobufDecode, err)
	}
	if hb.Header == nil {
		return nil, fmt.Errorf("%w: missing header", ErrProtobufDecode)
	}

	plain, err := cryptocore.DecryptCBC(e.decryptKey, hb.Header.IV, hb.Body)
	if err != nil {
		return nil, fmt.Errorf("envelope: decrypt: %w", err)
	}

	var d2d proto.DeviceToDeviceMessage
	if err := d2d.Unmarshal(plain); err != nil {
		return nil, fmt.Errorf("%w: d2d_message: %v", ErrProtobufDecode, err)
	}

	e.clientSeq++
	if d2d.SequenceNumber != e.clientSeq {
		return nil, fmt.Errorf("%w: got %d want %d", ErrSequenceMismatch, d2d.SequenceNumber, e.clientSeq)
	}

	var frame proto.OfflineFrame
	if err := frame.Unmarshal(d2d.Message); err != nil {
		return nil, fmt.Errorf("%w: offline_frame: %v", ErrProtobufDecode, err)
	}
	return &frame, nil
}
