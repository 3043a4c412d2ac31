// Package config owns rewritehub's persisted state: the TOML settings file
// written by the options surface, the credential store holding provider API
// keys, and the debug log. The settings file is treated as an external,
// eventually-consistent store: the orchestrator reads a fresh snapshot per
// rewrite attempt and never caches across requests.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Config holds the process-level configuration resolved at startup.
type Config struct {
	DataDirectory string
}

var debugEnabled atomic.Bool

// DebugLog receives diagnostic output when debug logging is enabled. It is
// never nil; before InitDebugLog runs it discards everything.
var DebugLog = log.New(io.Discard, "", 0)

// Debug reports whether debug logging is currently enabled. The flag follows
// the persisted debug_logs setting and is refreshed when settings change.
func Debug() bool {
	return debugEnabled.Load()
}

// SetDebug flips the debug flag. Called at startup and from the settings
// watcher; telemetry has no effect on control flow either way.
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("REWRITEHUB_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

// Load resolves the data directory and makes sure it exists.
func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory: GetDefaultDataDir(),
	}
	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// InitDebugLog opens the debug log file in the data directory. The flag
// itself is driven by the persisted settings; this only wires the sink.
func InitDebugLog(dataDir string) {
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the log can contain selection text and rewrite results.
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	DebugLog.Printf("=== Debug logging started ===")
	DebugLog.Printf("Log path: %s", logPath)
}
