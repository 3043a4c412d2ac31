package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const lockFile = "rewritehub.lock"

// InstanceLock enforces single-instance operation via a pid file in the data
// directory. Two hubs listening on the same port would race agent
// connections, so a second start must refuse to run.
type InstanceLock struct {
	path string
}

// NewInstanceLock creates a lock handle over <dataDir>/rewritehub.lock.
func NewInstanceLock(dataDir string) *InstanceLock {
	return &InstanceLock{path: filepath.Join(dataDir, lockFile)}
}

// Check reports whether another instance holds the lock, and its pid.
// Stale or malformed lock files are cleaned up and count as unlocked.
func (l *InstanceLock) Check() (bool, int, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read instance lock: %w", err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		_ = os.Remove(l.path)
		return false, 0, nil
	}

	// os.FindProcess always succeeds on Unix; treat a lookup failure
	// (Windows) as a stale lock.
	if _, err := os.FindProcess(pid); err != nil {
		_ = os.Remove(l.path)
		return false, 0, nil
	}

	return true, pid, nil
}

// Acquire writes this process's pid into the lock file.
func (l *InstanceLock) Acquire() error {
	// 0600 - same treatment as the rest of the data dir
	return os.WriteFile(l.path, []byte(fmt.Sprintf("%d", os.Getpid())), 0600)
}

// Release removes the lock file.
func (l *InstanceLock) Release() error {
	err := os.Remove(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
