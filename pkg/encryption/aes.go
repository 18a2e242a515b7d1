package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertextTooShort is returned for input shorter than a GCM nonce
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// AESEncryption seals payloads with AES-256-GCM. The nonce is prepended to
// each ciphertext. Safe for concurrent use.
type AESEncryption struct {
	gcm cipher.AEAD
}

// NewAESEncryption derives a 256-bit key from passphrase
func NewAESEncryption(passphrase string) (*AESEncryption, error) {
	if passphrase == "" {
		return nil, errors.New("encryption key must not be empty")
	}

	key := sha256.Sum256([]byte(passphrase))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESEncryption{gcm: gcm}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM
func (a *AESEncryption) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, a.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return a.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt
func (a *AESEncryption) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := a.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := a.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// EncryptString encrypts a string and returns base64 encoded result
func (a *AESEncryption) EncryptString(plaintext string) (string, error) {
	encrypted, err := a.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// DecryptString decrypts a base64 encoded string
func (a *AESEncryption) DecryptString(ciphertext string) (string, error) {
	encrypted, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	decrypted, err := a.Decrypt(encrypted)
	if err != nil {
		return "", err
	}
	return string(decrypted), nil
}

// GenerateKey generates a random base64 passphrase suitable for NewAESEncryption
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
