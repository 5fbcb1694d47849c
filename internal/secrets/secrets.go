// Package secrets encrypts provider credentials before they reach the
// store. Ciphertexts are base64(nonce || AES-GCM sealed bytes).
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// KeySize is the required AES-256 key length in bytes.
const KeySize = 32

var errBadKey = errors.New("ANSWERD_SECRETS_KEY must be 32 bytes or base64-encoded 32 bytes")

var newGCM = cipher.NewGCM

// ParseKey accepts the key either as 32 raw bytes or base64 of 32 bytes.
func ParseKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, errors.New("ANSWERD_SECRETS_KEY is required")
	}
	if len(raw) == KeySize {
		return []byte(raw), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) != KeySize {
		return nil, errBadKey
	}
	return decoded, nil
}

func aead(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return newGCM(block)
}

func Encrypt(key []byte, plaintext string) (string, error) {
	gcm, err := aead(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func Decrypt(key []byte, encoded string) (string, error) {
	gcm, err := aead(key)
	if err != nil {
		return "", err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", errors.New("invalid encrypted credential")
	}
	plain, err := gcm.Open(nil, data[:gcm.NonceSize()], data[gcm.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
