// Package registry implements the remote tenant registry client, the local
// metadata cache in front of it, and the credential cipher both sides share.
package registry

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// cipherPrefix marks a password value as encrypted-at-rest ciphertext.
	cipherPrefix = "enc:v1:"

	keyIterations = 4096
	keyLength     = 32
)

// keySalt is fixed: the derived key must be identical across instances that
// share the same configured secret.
var keySalt = []byte("atrium-tenant-credentials")

// CredentialCipher encrypts and decrypts tenant database passwords with
// AES-256-GCM, the key derived from a shared configuration secret.
type CredentialCipher struct {
	aead cipher.AEAD
}

// NewCredentialCipher derives the AEAD from the configured secret.
func NewCredentialCipher(secret string) (*CredentialCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("credential secret must not be empty")
	}

	key := pbkdf2.Key([]byte(secret), keySalt, keyIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &CredentialCipher{aead: aead}, nil
}

// Encrypt seals the plaintext and returns a self-describing ciphertext
// string carrying the version prefix.
func (c *CredentialCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return cipherPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *CredentialCipher) Decrypt(ciphertext string) (string, error) {
	if !IsEncrypted(ciphertext) {
		return "", fmt.Errorf("value is not %s ciphertext", cipherPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, cipherPrefix))
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether the value carries the ciphertext marker.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, cipherPrefix)
}
