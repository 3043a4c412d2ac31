package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInstanceLockLifecycle(t *testing.T) {
	lock := NewInstanceLock(t.TempDir())

	locked, _, err := lock.Check()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locked {
		t.Fatal("fresh data dir must be unlocked")
	}

	if err := lock.Acquire(); err != nil {
		t.Fatalf("failed to acquire: %v", err)
	}

	locked, pid, err := lock.Check()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !locked {
		t.Fatal("expected the lock held after acquire")
	}
	if pid != os.Getpid() {
		t.Errorf("expected own pid %d, got %d", os.Getpid(), pid)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("failed to release: %v", err)
	}
	locked, _, err = lock.Check()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locked {
		t.Error("expected unlocked after release")
	}
}

func TestInstanceLockMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rewritehub.lock"), []byte("not a pid"), 0600); err != nil {
		t.Fatalf("failed to write lock file: %v", err)
	}

	lock := NewInstanceLock(dir)
	locked, _, err := lock.Check()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locked {
		t.Error("a malformed lock file counts as unlocked")
	}
	if _, err := os.Stat(filepath.Join(dir, "rewritehub.lock")); !os.IsNotExist(err) {
		t.Error("expected the malformed lock file cleaned up")
	}
}

func TestInstanceLockReleaseIdempotent(t *testing.T) {
	lock := NewInstanceLock(t.TempDir())
	if err := lock.Release(); err != nil {
		t.Errorf("releasing an absent lock is not an error, got %v", err)
	}
}
