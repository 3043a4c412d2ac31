package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SecurityMethod defines the credential storage method
type SecurityMethod string

const (
	SecurityPlainText  SecurityMethod = "plaintext"
	SecurityPassphrase SecurityMethod = "passphrase"
)

const (
	plainCredentialsFile     = "credentials.json"
	encryptedCredentialsFile = "credentials.enc"
)

// CredentialStore manages encrypted or plain-text API credentials
type CredentialStore struct {
	mu          sync.RWMutex
	method      SecurityMethod
	credentials map[string]string // providerID → API key
	encManager  *EncryptionManager
}

// NewCredentialStore creates a new credential store
func NewCredentialStore(method SecurityMethod) *CredentialStore {
	return &CredentialStore{
		method:      method,
		credentials: make(map[string]string),
		encManager:  NewEncryptionManager(method),
	}
}

// SetPassphrase sets the passphrase used to derive the encryption key
// (passphrase method only).
func (c *CredentialStore) SetPassphrase(passphrase string) {
	c.encManager.SetPassphrase(passphrase)
}

// Load loads credentials from disk based on the configured security method.
// A missing credentials file is not an error; the store is simply empty and
// rewrite attempts surface the setup-required state instead.
func (c *CredentialStore) Load(dataDir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.method {
	case SecurityPlainText:
		creds, err := loadPlainText(dataDir)
		if err != nil {
			return err
		}
		c.credentials = creds
		return nil

	case SecurityPassphrase:
		creds, err := c.loadEncrypted(dataDir)
		if err != nil {
			return err
		}
		c.credentials = creds
		return nil

	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

// Save saves credentials to disk based on the configured security method
func (c *CredentialStore) Save(dataDir string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.method {
	case SecurityPlainText:
		return savePlainText(dataDir, c.credentials)

	case SecurityPassphrase:
		return c.saveEncrypted(dataDir)

	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

// Get returns the API key for a provider, or "" if none is stored.
func (c *CredentialStore) Get(providerID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credentials[providerID]
}

// Set stores an API key for a provider in memory. Call Save to persist.
func (c *CredentialStore) Set(providerID, apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if apiKey == "" {
		delete(c.credentials, providerID)
		return
	}
	c.credentials[providerID] = apiKey
}

// Method returns the configured security method.
func (c *CredentialStore) Method() SecurityMethod {
	return c.method
}

func loadPlainText(dataDir string) (map[string]string, error) {
	path := filepath.Join(dataDir, plainCredentialsFile)
	if !FileExists(path) {
		return make(map[string]string), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	creds := make(map[string]string)
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds, nil
}

func savePlainText(dataDir string, creds map[string]string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	path := filepath.Join(dataDir, plainCredentialsFile)
	// 0600 - API keys
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

func (c *CredentialStore) loadEncrypted(dataDir string) (map[string]string, error) {
	path := filepath.Join(dataDir, encryptedCredentialsFile)
	if !FileExists(path) {
		return make(map[string]string), nil
	}

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encrypted credentials: %w", err)
	}

	plaintext, err := c.encManager.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	creds := make(map[string]string)
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds, nil
}

func (c *CredentialStore) saveEncrypted(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	plaintext, err := json.Marshal(c.credentials)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	ciphertext, err := c.encManager.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	path := filepath.Join(dataDir, encryptedCredentialsFile)
	if err := os.WriteFile(path, ciphertext, 0600); err != nil {
		return fmt.Errorf("failed to write encrypted credentials: %w", err)
	}
	return nil
}
