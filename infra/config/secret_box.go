package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values written by SecretBox so plaintext rows from older
// databases can still be read
const sealedPrefix = "gcm:"

// SecretBox encrypts credential blobs at rest with AES-256-GCM
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox derives a 256-bit key from passphrase; an empty passphrase
// disables encryption and returns a nil box
func NewSecretBox(passphrase string) (*SecretBox, error) {
	if passphrase == "" {
		return nil, nil
	}

	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &SecretBox{aead: aead}, nil
}

// Seal encrypts plaintext; a nil box returns it unchanged
func (b *SecretBox) Seal(plaintext []byte) (string, error) {
	if b == nil {
		return string(plaintext), nil
	}

	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := b.aead.Seal(nonce, nonce, plaintext, nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal
func (b *SecretBox) Open(value string) ([]byte, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return []byte(value), nil
	}
	if b == nil {
		return nil, errors.New("value is encrypted but no encryption key is configured")
	}

	combined, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	if len(combined) < b.aead.NonceSize() {
		return nil, errors.New("encrypted value too short")
	}

	nonce, ciphertext := combined[:b.aead.NonceSize()], combined[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
