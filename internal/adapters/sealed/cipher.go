// Package sealed encrypts access tokens before they reach a session store.
package sealed

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Versioned prefix so a later key or algorithm rotation can tell old tokens apart.
const cipherPrefixV1 = "v1:"

// Cipher seals tokens with AES-256-GCM.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromString accepts a 64-character hex key; any other string is hashed to 32 bytes.
func NewCipherFromString(key string) (*Cipher, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("token key is required")
	}
	if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == 32 {
		return NewCipher(decoded)
	}
	sum := sha256.Sum256([]byte(key))
	return NewCipher(sum[:])
}

// Seal encrypts plaintext with a random nonce and returns a versioned base64 string.
func (c *Cipher) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	// nonce||ciphertext
	out := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return cipherPrefixV1 + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a string produced by Seal.
func (c *Cipher) Open(sealed string) (string, error) {
	b64, ok := strings.CutPrefix(sealed, cipherPrefixV1)
	if !ok {
		return "", errors.New("unknown token ciphertext version")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode token ciphertext: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("token ciphertext too short")
	}
	pt, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("open token ciphertext: %w", err)
	}
	return string(pt), nil
}
