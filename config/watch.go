package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// SettingsWatcher notifies when the settings file changes so process-wide
// flags (debug logging, agent modes) can refresh without a restart. Editors
// and the options surface write via rename or truncate, so the watcher
// observes the parent directory and filters events for the settings file.
type SettingsWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	done     chan struct{}
}

// WatchSettings starts watching path and invokes onChange (debounced) after
// each write. Close releases the watcher.
func WatchSettings(path string, onChange func()) (*SettingsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create settings watcher: %w", err)
	}

	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch settings directory: %w", err)
	}

	sw := &SettingsWatcher{
		watcher:  w,
		path:     filepath.Clean(path),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go sw.loop()
	return sw, nil
}

func (sw *SettingsWatcher) loop() {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != sw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of events from a single save.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			if Debug() {
				DebugLog.Printf("[Config] Settings file changed, refreshing")
			}
			sw.onChange()

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			if Debug() {
				DebugLog.Printf("[Config] Settings watcher error: %v", err)
			}

		case <-sw.done:
			return
		}
	}
}

// Close stops the watcher.
func (sw *SettingsWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}
