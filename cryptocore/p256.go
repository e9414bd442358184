package cryptocore

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// KeyPair is an ephemeral P-256 keypair, generated once per session and
// never persisted.
type KeyPair struct {
	priv *ecdh.PrivateKey
	pub  *ecdh.PublicKey
}

// GenerateP256KeyPair draws a uniform random P-256 scalar from rand.Reader.
func GenerateP256KeyPair() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generate p256 key: %v", ErrKeyDerivation, err)
	}
	return &KeyPair{priv: priv, pub: priv.PublicKey()}, nil
}

// PublicXY returns the uncompressed affine coordinates of the public point,
// each exactly 32 bytes.
func (kp *KeyPair) PublicXY() (x, y []byte) {
	raw := kp.pub.Bytes() // 0x04 || X || Y
	return raw[1:33], raw[33:65]
}

// NormalizeCoord implements the peer-coordinate normalization rule: right
// truncate to the last 32 bytes if longer, use as-is (no left-pad) if
// shorter or equal.
func NormalizeCoord(c []byte) []byte {
	if len(c) > 32 {
		return c[len(c)-32:]
	}
	return c
}

// DeriveSecret computes ECDH(local_priv, peer_pub), takes the raw X
// coordinate and returns SHA-256 of it as the 32-byte derived_secret.
func (kp *KeyPair) DeriveSecret(peerX, peerY []byte) ([]byte, error) {
	x := NormalizeCoord(peerX)
	y := NormalizeCoord(peerY)

	sec1 := make([]byte, 0, 1+len(x)+len(y))
	sec1 = append(sec1, 0x04)
	sec1 = append(sec1, x...)
	sec1 = append(sec1, y...)

	peerPub, err := ecdh.P256().NewPublicKey(sec1)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid peer point: %v", ErrKeyDerivation, err)
	}

	raw, err := kp.priv.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("%w: ecdh: %v", ErrKeyDerivation, err)
	}

	sum := sha256.Sum256(raw)
	return sum[:], nil
}
