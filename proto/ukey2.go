// Package proto hand-rolls wire-faithful marshal/unmarshal for the
// UKEY2 and Nearby-Connections-style offline-frame messages this module
// exchanges. The .proto schemas themselves are assumed external (see
// SPEC_FULL.md §12); this package encodes/decodes the same wire shapes
// directly against google.golang.org/protobuf/encoding/protowire instead
// of depending on generated code that does not exist in this tree.
package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Ukey2MessageType is the outer Ukey2Message.message_type enum.
type Ukey2MessageType int32

const (
	Ukey2MessageUnknownDoNotUse Ukey2MessageType = 0
	Ukey2MessageAlert           Ukey2MessageType = 1
	Ukey2MessageClientInit      Ukey2MessageType = 2
	Ukey2MessageServerInit      Ukey2MessageType = 3
	Ukey2MessageClientFinish    Ukey2MessageType = 4
)

// Ukey2AlertType is the Ukey2Alert.type enum.
type Ukey2AlertType int32

const (
	Ukey2AlertUnknownDoNotUse  Ukey2AlertType = 0
	Ukey2AlertBadMessageType   Ukey2AlertType = 1
	Ukey2AlertBadRandom        Ukey2AlertType = 2
	Ukey2AlertBadHandshakeCipher Ukey2AlertType = 3
	Ukey2AlertBadNextProtocol  Ukey2AlertType = 4
	Ukey2AlertBadPublicKey     Ukey2AlertType = 5
	Ukey2AlertBadVersion       Ukey2AlertType = 6
	Ukey2AlertInternalError    Ukey2AlertType = 7
)

// HandshakeCipher is the UKEY2 cipher-suite enum.
type HandshakeCipher int32

const (
	HandshakeCipherUnknownDoNotUse HandshakeCipher = 0
	HandshakeCipherP256Sha512      HandshakeCipher = 1
)

// Ukey2Message is the outer envelope every UKEY2 wire message is wrapped
// in.
type Ukey2Message struct {
	MessageType Ukey2MessageType
	MessageData []byte
}

func (m *Ukey2Message) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.MessageType))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, m.MessageData)
	return b
}

func (m *Ukey2Message) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("ukey2message: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("ukey2message: bad message_type: %w", protowire.ParseError(n))
			}
			m.MessageType = Ukey2MessageType(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ukey2message: bad message_data: %w", protowire.ParseError(n))
			}
			m.MessageData = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("ukey2message: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// CipherCommitment binds a handshake cipher choice to a commitment hash.
type CipherCommitment struct {
	HandshakeCipher HandshakeCipher
	Commitment      []byte
}

func (c *CipherCommitment) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.HandshakeCipher))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, c.Commitment)
	return b
}

func (c *CipherCommitment) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("ciphercommitment: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("ciphercommitment: bad handshake_cipher: %w", protowire.ParseError(n))
			}
			c.HandshakeCipher = HandshakeCipher(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ciphercommitment: bad commitment: %w", protowire.ParseError(n))
			}
			c.Commitment = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("ciphercommitment: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// Ukey2ClientInit is the ClientInit inner message.
type Ukey2ClientInit struct {
	Version           int32
	Random            []byte
	NextProtocol      string
	CipherCommitments []CipherCommitment
}

func (m *Ukey2ClientInit) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Version))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Random)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(m.NextProtocol))
	for _, cc := range m.CipherCommitments {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, cc.Marshal())
	}
	return b
}

func (m *Ukey2ClientInit) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("ukey2clientinit: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("ukey2clientinit: bad version: %w", protowire.ParseError(n))
			}
			m.Version = int32(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ukey2clientinit: bad random: %w", protowire.ParseError(n))
			}
			m.Random = append([]byte{}, v...)
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ukey2clientinit: bad next_protocol: %w", protowire.ParseError(n))
			}
			m.NextProtocol = string(v)
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ukey2clientinit: bad cipher_commitment: %w", protowire.ParseError(n))
			}
			var cc CipherCommitment
			if err := cc.Unmarshal(v); err != nil {
				return err
			}
			m.CipherCommitments = append(m.CipherCommitments, cc)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("ukey2clientinit: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// Ukey2ServerInit is the ServerInit inner message.
type Ukey2ServerInit struct {
	Version         int32
	Random          []byte
	HandshakeCipher HandshakeCipher
	PublicKey       []byte
}

func (m *Ukey2ServerInit) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Version))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Random)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.HandshakeCipher))
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, m.PublicKey)
	return b
}

func (m *Ukey2ServerInit) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("ukey2serverinit: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("ukey2serverinit: bad version: %w", protowire.ParseError(n))
			}
			m.Version = int32(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ukey2serverinit: bad random: %w", protowire.ParseError(n))
			}
			m.Random = append([]byte{}, v...)
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("ukey2serverinit: bad handshake_cipher: %w", protowire.ParseError(n))
			}
			m.HandshakeCipher = HandshakeCipher(v)
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ukey2serverinit: bad public_key: %w", protowire.ParseError(n))
			}
			m.PublicKey = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("ukey2serverinit: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// Ukey2ClientFinished is the ClientFinish inner message.
type Ukey2ClientFinished struct {
	PublicKey []byte
}

func (m *Ukey2ClientFinished) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, m.PublicKey)
	return b
}

func (m *Ukey2ClientFinished) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("ukey2clientfinished: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ukey2clientfinished: bad public_key: %w", protowire.ParseError(n))
			}
			m.PublicKey = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("ukey2clientfinished: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// Ukey2Alert is the inner message of an error-signaling Ukey2Message.
type Ukey2Alert struct {
	Type         Ukey2AlertType
	ErrorMessage string
}

func (m *Ukey2Alert) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	if m.ErrorMessage != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(m.ErrorMessage))
	}
	return b
}

func (m *Ukey2Alert) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("ukey2alert: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("ukey2alert: bad type: %w", protowire.ParseError(n))
			}
			m.Type = Ukey2AlertType(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ukey2alert: bad error_message: %w", protowire.ParseError(n))
			}
			m.ErrorMessage = string(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("ukey2alert: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// PublicKeyType is the GenericPublicKey.type enum.
type PublicKeyType int32

const (
	PublicKeyUnknownDoNotUse PublicKeyType = 0
	PublicKeyEcP256          PublicKeyType = 1
)

// EcP256PublicKey holds the uncompressed affine coordinates of a P-256
// point. Unmarshal keeps the coordinate bytes as received; length
// normalization happens later, in cryptocore.NormalizeCoord.
type EcP256PublicKey struct {
	X []byte
	Y []byte
}

func (k *EcP256PublicKey) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, k.X)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, k.Y)
	return b
}

func (k *EcP256PublicKey) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("ecp256publickey: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ecp256publickey: bad x: %w", protowire.ParseError(n))
			}
			k.X = append([]byte{}, v...)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("ecp256publickey: bad y: %w", protowire.ParseError(n))
			}
			k.Y = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("ecp256publickey: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// GenericPublicKey wraps a typed public key; only EcP256 is populated by
// this module.
type GenericPublicKey struct {
	Type           PublicKeyType
	EcP256PublicKey *EcP256PublicKey
}

func (k *GenericPublicKey) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.Type))
	if k.EcP256PublicKey != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, k.EcP256PublicKey.Marshal())
	}
	return b
}

func (k *GenericPublicKey) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("genericpublickey: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("genericpublickey: bad type: %w", protowire.ParseError(n))
			}
			k.Type = PublicKeyType(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("genericpublickey: bad ec_p256_public_key: %w", protowire.ParseError(n))
			}
			ec := &EcP256PublicKey{}
			if err := ec.Unmarshal(v); err != nil {
				return err
			}
			k.EcP256PublicKey = ec
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("genericpublickey: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}
