package ukey2

import (
	"errors"

	"github.com/sage-x-project/nearbylink/proto"
)

// ErrProtocol is the sentinel all UKEY2 protocol violations wrap; each
// carries the Ukey2Alert type that should be sent back to the peer.
var ErrProtocol = errors.New("ukey2: protocol violation")

// ErrKeyDerivation signals a key-derivation failure discovered while
// processing a handshake message (malformed peer key, HKDF failure). No
// alert is sent: the keys are not yet established.
var ErrKeyDerivation = errors.New("ukey2: key derivation failed")

// ProtocolError pairs a protocol violation with the alert type a caller
// should transmit before terminating the session.
type ProtocolError struct {
	Alert proto.Ukey2AlertType
	msg   string
}

func (e *ProtocolError) Error() string { return "ukey2: " + e.msg }

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

func newProtocolError(alert proto.Ukey2AlertType, msg string) *ProtocolError {
	return &ProtocolError{Alert: alert, msg: msg}
}
