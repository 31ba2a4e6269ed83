// Package secrets encrypts personal data columns at rest.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

//nolint:gochecknoglobals // sentinel error
var ErrInvalidKey = errors.New("secrets: invalid encryption key")

// sealedPrefix marks values written by Seal. Anything without it predates
// encryption and is returned unchanged by Open.
const sealedPrefix = "enc:v1:"

// Vault encrypts/decrypts field values using AES-256-GCM.
type Vault struct {
	aead cipher.AEAD
}

// NewVault creates a Vault with the given 32-byte encryption key.
func NewVault(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets.NewVault: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets.NewVault: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// NewVaultFromBase64 decodes a standard base64 key, as stored in
// configuration, and creates a Vault from it.
func NewVaultFromBase64(encoded string) (*Vault, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("secrets.NewVaultFromBase64: %w: %w", ErrInvalidKey, err)
	}
	return NewVault(key)
}

// Seal encrypts plaintext. The output format is
// "enc:v1:" + base64(nonce || ciphertext). Empty values stay empty.
func (v *Vault) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets.Seal: generate nonce: %w", err)
	}

	// Seal appends the encrypted data to nonce, producing nonce || ciphertext.
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as-is.
func (v *Vault) Open(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("secrets.Open: base64 decode: %w", err)
	}

	nonceSize := v.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("secrets.Open: ciphertext too short")
	}

	plaintext, err := v.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("secrets.Open: %w", err)
	}

	return string(plaintext), nil
}
