package cryptocore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	authInfoSalt = "UKEY2 v1 auth"
	nextInfoSalt = "UKEY2 v1 next"
)

// salt1Hex/salt2Hex are the fixed UKEY2 v1 D2D and application-key salts.
var (
	salt1Hex = "82AA55A0D397F88346CA1CEE8D3909B95F13FA7DEB1D4AB38376B8256DA85510"
	salt2Hex = "BF9D2A53C63616D75DB0A7165B91C1EF73E537F2427405FA23610A4BE657642E"
)

// ExtractExpand runs RFC 5869 HKDF Extract-then-Expand with SHA-256,
// returning exactly length bytes.
func ExtractExpand(salt, ikm, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// SessionKeys holds the four UKEY2 v1 symmetric keys plus the raw auth
// secret the PIN is derived from.
type SessionKeys struct {
	EncryptKey  []byte
	SendHMACKey []byte
	DecryptKey  []byte
	RecvHMACKey []byte
	Auth        []byte
}

// DeriveSessionKeys runs the full UKEY2 v1 key ladder described in the
// handshake: auth/next from the ECDH-derived secret and the handshake
// transcript, then the client/server D2D keys, then the four application
// keys. ci and si are the full serialized outer Ukey2Message wire bytes for
// ClientInit and ServerInit respectively.
func DeriveSessionKeys(derivedSecret, ci, si []byte) (*SessionKeys, error) {
	info := make([]byte, 0, len(ci)+len(si))
	info = append(info, ci...)
	info = append(info, si...)

	auth, err := ExtractExpand([]byte(authInfoSalt), derivedSecret, info, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: auth: %v", ErrKeyDerivation, err)
	}
	next, err := ExtractExpand([]byte(nextInfoSalt), derivedSecret, info, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: next: %v", ErrKeyDerivation, err)
	}

	salt1, err := hex.DecodeString(salt1Hex)
	if err != nil {
		return nil, fmt.Errorf("salt1: %w", err)
	}
	d2dClient, err := ExtractExpand(salt1, next, []byte("client"), 32)
	if err != nil {
		return nil, fmt.Errorf("%w: d2d_client: %v", ErrKeyDerivation, err)
	}
	d2dServer, err := ExtractExpand(salt1, next, []byte("server"), 32)
	if err != nil {
		return nil, fmt.Errorf("%w: d2d_server: %v", ErrKeyDerivation, err)
	}

	salt2, err := hex.DecodeString(salt2Hex)
	if err != nil {
		return nil, fmt.Errorf("salt2: %w", err)
	}
	encryptKey, err := ExtractExpand(salt2, d2dClient, []byte("ENC:2"), 32)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt_key: %v", ErrKeyDerivation, err)
	}
	sendHMACKey, err := ExtractExpand(salt2, d2dClient, []byte("SIG:1"), 32)
	if err != nil {
		return nil, fmt.Errorf("%w: send_hmac_key: %v", ErrKeyDerivation, err)
	}
	decryptKey, err := ExtractExpand(salt2, d2dServer, []byte("ENC:2"), 32)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt_key: %v", ErrKeyDerivation, err)
	}
	recvHMACKey, err := ExtractExpand(salt2, d2dServer, []byte("SIG:1"), 32)
	if err != nil {
		return nil, fmt.Errorf("%w: recv_hmac_key: %v", ErrKeyDerivation, err)
	}

	return &SessionKeys{
		EncryptKey:  encryptKey,
		SendHMACKey: sendHMACKey,
		DecryptKey:  decryptKey,
		RecvHMACKey: recvHMACKey,
		Auth:        auth,
	}, nil
}
