// Package crypto holds the symmetric helpers used for stored third-party
// credentials and webhook signatures.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	keySize   = 32
	nonceSize = 16
	tagSize   = 16
)

// SecretBox encrypts short secrets with AES-256-GCM.
// Ciphertexts are encoded as "iv:tag:ciphertext" in hex.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox builds a SecretBox from a 64 character hex key
func NewSecretBox(hexKey string) (*SecretBox, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key must be hex: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}
	return &SecretBox{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV
func (b *SecretBox) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	sealed := b.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a value produced by Encrypt
func (b *SecretBox) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", errors.New("malformed ciphertext")
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", err
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", err
	}
	if len(iv) != nonceSize || len(tag) != tagSize {
		return "", errors.New("malformed ciphertext")
	}
	plain, err := b.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// RandomToken returns n random bytes hex-encoded
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// SignSHA256 returns the "sha256=<hex>" HMAC of body
func SignSHA256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySHA256 compares a "sha256=<hex>" header against body in constant time
func VerifySHA256(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	return hmac.Equal([]byte(SignSHA256(secret, body)), []byte(header))
}
