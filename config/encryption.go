package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16
	keySize  = 32

	// scrypt parameters (interactive-login strength).
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// EncryptionManager derives an AES key from a passphrase and encrypts or
// decrypts credential blobs with AES-GCM.
//
// Encrypted format: [salt (16 bytes)][nonce (12 bytes)][ciphertext + tag]
type EncryptionManager struct {
	method     SecurityMethod
	passphrase string
}

// NewEncryptionManager creates a manager for the given security method.
func NewEncryptionManager(method SecurityMethod) *EncryptionManager {
	return &EncryptionManager{method: method}
}

// SetPassphrase sets the passphrase used for key derivation.
func (e *EncryptionManager) SetPassphrase(passphrase string) {
	e.passphrase = passphrase
}

// Encrypt seals plaintext. Plaintext method passes data through unchanged.
func (e *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	switch e.method {
	case SecurityPlainText:
		return plaintext, nil
	case SecurityPassphrase:
		if e.passphrase == "" {
			return nil, fmt.Errorf("passphrase not set")
		}
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		key, err := e.deriveKey(salt)
		if err != nil {
			return nil, err
		}
		sealed, err := encryptAESGCM(plaintext, key)
		if err != nil {
			return nil, err
		}
		return append(salt, sealed...), nil
	default:
		return nil, fmt.Errorf("unknown security method: %s", e.method)
	}
}

// Decrypt opens a blob produced by Encrypt.
func (e *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	switch e.method {
	case SecurityPlainText:
		return ciphertext, nil
	case SecurityPassphrase:
		if e.passphrase == "" {
			return nil, fmt.Errorf("passphrase not set")
		}
		if len(ciphertext) < saltSize {
			return nil, fmt.Errorf("ciphertext too short")
		}
		salt, sealed := ciphertext[:saltSize], ciphertext[saltSize:]
		key, err := e.deriveKey(salt)
		if err != nil {
			return nil, err
		}
		return decryptAESGCM(sealed, key)
	default:
		return nil, fmt.Errorf("unknown security method: %s", e.method)
	}
}

func (e *EncryptionManager) deriveKey(salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(e.passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// encryptAESGCM seals plaintext with AES-256-GCM.
// Format: [nonce (12 bytes)][ciphertext + tag]
func encryptAESGCM(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decryptAESGCM opens data sealed by encryptAESGCM.
// Expects format: [nonce (12 bytes)][ciphertext + tag]
func decryptAESGCM(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, sealed, nil)
}
