package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPlainTextCredentialsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := NewCredentialStore(SecurityPlainText)
	store.Set("openai", "sk-test00000000000000000000")
	store.Set("anthropic", "sk-ant-REDACTED")
	if err := store.Save(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded := NewCredentialStore(SecurityPlainText)
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.Get("openai") != "sk-test00000000000000000000" {
		t.Error("openai key lost across reload")
	}
	if reloaded.Get("anthropic") != "sk-ant-REDACTED" {
		t.Error("anthropic key lost across reload")
	}
	if reloaded.Get("gemini") != "" {
		t.Error("gemini key was never stored")
	}

	info, err := os.Stat(filepath.Join(dir, "credentials.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 credentials file, got %o", info.Mode().Perm())
	}
}

func TestLoadMissingCredentialsFile(t *testing.T) {
	store := NewCredentialStore(SecurityPlainText)
	if err := store.Load(t.TempDir()); err != nil {
		t.Fatalf("a missing credentials file is not an error, got %v", err)
	}
	if store.Get("openai") != "" {
		t.Error("expected an empty store")
	}
}

func TestSetEmptyKeyDeletes(t *testing.T) {
	store := NewCredentialStore(SecurityPlainText)
	store.Set("openai", "sk-test00000000000000000000")
	store.Set("openai", "")
	if store.Get("openai") != "" {
		t.Error("expected the key removed")
	}
}

func TestEncryptedCredentialsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := NewCredentialStore(SecurityPassphrase)
	store.SetPassphrase("correct horse battery staple")
	store.Set("openai", "sk-test00000000000000000000")
	if err := store.Save(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The key must not sit on disk in the clear.
	raw, err := os.ReadFile(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(raw), "sk-test") {
		t.Fatal("API key visible in the encrypted file")
	}

	reloaded := NewCredentialStore(SecurityPassphrase)
	reloaded.SetPassphrase("correct horse battery staple")
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.Get("openai") != "sk-test00000000000000000000" {
		t.Error("key lost across encrypted reload")
	}
}

func TestEncryptedCredentialsWrongPassphrase(t *testing.T) {
	dir := t.TempDir()

	store := NewCredentialStore(SecurityPassphrase)
	store.SetPassphrase("right passphrase")
	store.Set("openai", "sk-test00000000000000000000")
	if err := store.Save(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded := NewCredentialStore(SecurityPassphrase)
	reloaded.SetPassphrase("wrong passphrase")
	if err := reloaded.Load(dir); err == nil {
		t.Fatal("expected a decryption failure with the wrong passphrase")
	}
}
