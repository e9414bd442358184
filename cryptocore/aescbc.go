package cryptocore

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// EncryptCBC pads plaintext with PKCS#7, generates a fresh 16-byte IV and
// returns (iv, ciphertext). key must be 32 bytes (AES-256).
func EncryptCBC(key, plaintext []byte) (iv, ciphertext []byte, err error) {
	if len(key) != 32 {
		return nil, nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("aes cipher: %w", err)
	}

	iv = make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return iv, ciphertext, nil
}

// DecryptCBC reverses EncryptCBC, stripping PKCS#7 padding.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: bad iv length", ErrInvalidCiphertext)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: not block aligned", ErrInvalidCiphertext)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, 0, len(data)+padLen)
	out = append(out, data...)
	out = append(out, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	return out
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty padded data", ErrInvalidCiphertext)
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
	}
	return data[:len(data)-padLen], nil
}

// ComputeHMAC returns the 32-byte HMAC-SHA-256 tag of data under key.
func ComputeHMAC(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}

// VerifyHMAC performs a constant-time comparison of the recomputed tag
// against tag.
func VerifyHMAC(key, data, tag []byte) bool {
	return hmac.Equal(ComputeHMAC(key, data), tag)
}
