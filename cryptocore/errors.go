// Package cryptocore implements the P-256 ECDH, HKDF, AES-CBC and HMAC
// primitives the UKEY2 handshake and secure envelope build on.
package cryptocore

import "errors"

var (
	// ErrKeyDerivation covers ECDH/HKDF failures and malformed peer keys.
	ErrKeyDerivation = errors.New("cryptocore: key derivation failed")
	// ErrInvalidKeyLength is returned when an AES or HMAC key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("cryptocore: key must be 32 bytes")
	// ErrInvalidCiphertext covers block-alignment and padding failures on decrypt.
	ErrInvalidCiphertext = errors.New("cryptocore: invalid ciphertext")
	// ErrSignatureMismatch names an HMAC tag mismatch. VerifyHMAC itself
	// reports a mismatch as false and does not return this error.
	ErrSignatureMismatch = errors.New("cryptocore: signature mismatch")
)
