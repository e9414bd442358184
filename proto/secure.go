package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// EncryptionScheme is Header.encryption_scheme.
type EncryptionScheme int32

const (
	EncryptionSchemeUnknownDoNotUse EncryptionScheme = 0
	EncryptionSchemeAES256CBC       EncryptionScheme = 1
)

// SignatureScheme is Header.signature_scheme.
type SignatureScheme int32

const (
	SignatureSchemeUnknownDoNotUse SignatureScheme = 0
	SignatureSchemeHMACSha256      SignatureScheme = 1
)

// GcmMetadataType tags the payload carried by an encrypted HeaderAndBody.
type GcmMetadataType int32

const (
	GcmMetadataUnknownDoNotUse      GcmMetadataType = 0
	GcmMetadataDeviceToDeviceMessage GcmMetadataType = 1
)

// GcmMetadata is the public_metadata payload embedded in Header.
type GcmMetadata struct {
	Type    GcmMetadataType
	Version int32
}

func (m *GcmMetadata) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Version))
	return b
}

func (m *GcmMetadata) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("gcmmetadata: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("gcmmetadata: bad type: %w", protowire.ParseError(n))
			}
			m.Type = GcmMetadataType(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("gcmmetadata: bad version: %w", protowire.ParseError(n))
			}
			m.Version = int32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("gcmmetadata: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// Header describes the encryption applied to a HeaderAndBody's body.
type Header struct {
	EncryptionScheme EncryptionScheme
	SignatureScheme  SignatureScheme
	IV               []byte
	PublicMetadata   []byte
}

func (h *Header) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.EncryptionScheme))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.SignatureScheme))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, h.IV)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, h.PublicMetadata)
	return b
}

func (h *Header) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("header: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("header: bad encryption_scheme: %w", protowire.ParseError(n))
			}
			h.EncryptionScheme = EncryptionScheme(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("header: bad signature_scheme: %w", protowire.ParseError(n))
			}
			h.SignatureScheme = SignatureScheme(v)
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("header: bad iv: %w", protowire.ParseError(n))
			}
			h.IV = append([]byte{}, v...)
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("header: bad public_metadata: %w", protowire.ParseError(n))
			}
			h.PublicMetadata = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("header: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// HeaderAndBody is the HMAC-covered payload inside a SecureMessage.
type HeaderAndBody struct {
	Header *Header
	Body   []byte
}

func (hb *HeaderAndBody) Marshal() []byte {
	var b []byte
	if hb.Header != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, hb.Header.Marshal())
	}
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, hb.Body)
	return b
}

func (hb *HeaderAndBody) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("headerandbody: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("headerandbody: bad header: %w", protowire.ParseError(n))
			}
			h := &Header{}
			if err := h.Unmarshal(v); err != nil {
				return err
			}
			hb.Header = h
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("headerandbody: bad body: %w", protowire.ParseError(n))
			}
			hb.Body = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("headerandbody: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// SecureMessage is the outermost Encrypt-then-MAC envelope sent on the
// wire once the session is Encrypted.
type SecureMessage struct {
	HeaderAndBody []byte // serialized HeaderAndBody; the HMAC covers these exact bytes
	Signature     []byte
}

func (m *SecureMessage) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, m.HeaderAndBody)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Signature)
	return b
}

func (m *SecureMessage) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("securemessage: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("securemessage: bad header_and_body: %w", protowire.ParseError(n))
			}
			m.HeaderAndBody = append([]byte{}, v...)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("securemessage: bad signature: %w", protowire.ParseError(n))
			}
			m.Signature = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("securemessage: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// DeviceToDeviceMessage is the sequence-numbered inner message the
// envelope's ciphertext decrypts to.
type DeviceToDeviceMessage struct {
	SequenceNumber int32
	Message        []byte
}

func (m *DeviceToDeviceMessage) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(m.SequenceNumber)))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Message)
	return b
}

func (m *DeviceToDeviceMessage) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("d2dmessage: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("d2dmessage: bad sequence_number: %w", protowire.ParseError(n))
			}
			m.SequenceNumber = int32(uint32(v))
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("d2dmessage: bad message: %w", protowire.ParseError(n))
			}
			m.Message = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("d2dmessage: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}
