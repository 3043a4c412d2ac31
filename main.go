package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"rewritehub/background"
	"rewritehub/bridge"
	"rewritehub/config"
	"rewritehub/model"
	"rewritehub/protocol"
	"rewritehub/storage"
)

const Version = "v0.01.00"

func main() {
	listenAddr := flag.String("listen", "127.0.0.1:8791", "address the hub listens on")
	passphrase := flag.String("passphrase", "", "credential passphrase (enables encrypted credential store)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("rewritehub %s\n", Version)
		return
	}

	if err := run(*listenAddr, *passphrase); err != nil {
		fmt.Fprintf(os.Stderr, "rewritehub: %v\n", err)
		os.Exit(1)
	}
}

func run(listenAddr, passphrase string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dataDir := cfg.DataDir()

	config.InitDebugLog(dataDir)

	// Two hubs on one data dir would race agent connections and the
	// settings file.
	lock := storage.NewInstanceLock(dataDir)
	locked, runningPID, err := lock.Check()
	if err != nil {
		return fmt.Errorf("failed to check instance lock: %w", err)
	}
	if locked {
		return fmt.Errorf("another rewritehub instance is already running (PID %d)", runningPID)
	}
	if err := lock.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			config.DebugLog.Printf("Warning: failed to release instance lock: %v", err)
		}
	}()

	method := config.SecurityPlainText
	if passphrase != "" {
		method = config.SecurityPassphrase
	}
	creds := config.NewCredentialStore(method)
	if passphrase != "" {
		creds.SetPassphrase(passphrase)
	}
	if err := creds.Load(dataDir); err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	settings := config.NewSettingsStore(dataDir, creds)
	if !config.FileExists(settings.Path()) {
		if err := os.WriteFile(settings.Path(), []byte(config.GenerateSettingsTemplate()), 0600); err != nil {
			return fmt.Errorf("failed to write settings template: %w", err)
		}
	}

	applyDebugFlag(settings)

	history, err := storage.NewHistoryStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer history.Close()

	hub := bridge.NewHub()
	orch := background.NewOrchestrator(hub, settings,
		background.WithHistory(history),
		background.WithNotifier(desktopNotifier{}),
	)
	hub.SetHandler(orch.HandleAgentMessage)

	watcher, err := config.WatchSettings(settings.Path(), func() {
		applyDebugFlag(settings)
		pushAgentSettings(hub, settings)
	})
	if err != nil {
		config.DebugLog.Printf("Warning: settings watcher unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/agent", hub.HandleAgent)
	mux.HandleFunc("/shim", hub.HandleShim)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	config.DebugLog.Printf("rewritehub %s listening on %s", Version, listenAddr)
	fmt.Printf("rewritehub %s listening on %s\n", Version, listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		config.DebugLog.Printf("Received %s, shutting down", sig)
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// applyDebugFlag pushes the persisted debug_logs setting into the
// process-wide flag. Called at startup and on every settings change.
func applyDebugFlag(settings *config.SettingsStore) {
	s, err := settings.Load()
	if err != nil {
		config.DebugLog.Printf("Warning: failed to load settings: %v", err)
		return
	}
	config.SetDebug(s.DebugLogs)
}

// pushAgentSettings broadcasts the agent-facing settings to every connected
// tab so mode changes take effect without a page reload.
func pushAgentSettings(hub *bridge.Hub, settings *config.SettingsStore) {
	s, err := settings.Load()
	if err != nil {
		config.DebugLog.Printf("Warning: failed to load settings for agent push: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Broadcast(ctx, protocol.Message{
		Type: protocol.TypeUpdateDetection,
		Mode: string(s.AutoDetectionOrDefault()),
	})
	hub.Broadcast(ctx, protocol.Message{
		Type:    protocol.TypeTogglePreview,
		Enabled: s.ModeOrDefault() == model.ModePreview,
	})
}

// desktopNotifier raises notifications through notify-send where available
// and falls back to stderr.
type desktopNotifier struct{}

func (desktopNotifier) Notify(title, message string) error {
	if path, err := exec.LookPath("notify-send"); err == nil {
		return exec.Command(path, title, message).Run()
	}
	_, err := fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
	return err
}
