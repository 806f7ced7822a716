// Package crypto seals aggregator access tokens at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidKey      = errors.New("encryption key must be exactly 32 bytes")
	ErrMalformedCipher = errors.New("ciphertext too short")
)

const fingerprintLen = 12

// Encryptor performs AES-256-GCM with a random nonce prefixed to the
// ciphertext. Token fingerprints use a separate HKDF-derived key.
type Encryptor struct {
	aead  cipher.AEAD
	fpKey []byte
}

func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}

	sealKey, err := derive([]byte(key), "finhealth token seal")
	if err != nil {
		return nil, err
	}
	fpKey, err := derive([]byte(key), "finhealth token fingerprint")
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(sealKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead, fpKey: fpKey}, nil
}

func derive(master []byte, info string) ([]byte, error) {
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return out, nil
}

// Encrypt returns base64(nonce || ciphertext). Empty input stays empty.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	ns := e.aead.NonceSize()
	if len(data) < ns {
		return "", ErrMalformedCipher
	}

	plain, err := e.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}

// Fingerprint identifies a secret in logs without revealing it.
func (e *Encryptor) Fingerprint(secret string) string {
	mac := hmac.New(sha256.New, e.fpKey)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))[:fingerprintLen]
}
