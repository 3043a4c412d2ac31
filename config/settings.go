package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"rewritehub/model"
)

// ProviderSettings is the per-provider slice of the settings file. API keys
// are deliberately absent; they live in the credential store.
type ProviderSettings struct {
	Model        string `toml:"model"`
	Preset       string `toml:"preset"`
	CustomPreset string `toml:"custom_preset"`
}

// Settings mirrors the options surface's settings file. The hub only reads
// it; the options surface owns all writes.
type Settings struct {
	Provider         string                      `toml:"provider"`
	Mode             string                      `toml:"mode"`
	AutoDetection    string                      `toml:"auto_detection"`
	DebugLogs        bool                        `toml:"debug_logs"`
	KeyboardShortcut string                      `toml:"keyboard_shortcut"`
	Providers        map[string]ProviderSettings `toml:"providers"`
}

// ActiveProvider returns the selected provider id, defaulting to OpenAI when
// the settings file carries none or names something unknown to the settings
// schema. (The provider registry still fails fast on genuinely unknown ids.)
func (s *Settings) ActiveProvider() model.ProviderID {
	if s.Provider == "" {
		return model.ProviderOpenAI
	}
	return model.ProviderID(s.Provider)
}

// ModeOrDefault returns the configured mode, defaulting to auto-replace.
func (s *Settings) ModeOrDefault() model.Mode {
	switch model.Mode(s.Mode) {
	case model.ModePreview:
		return model.ModePreview
	default:
		return model.ModeAutoReplace
	}
}

// AutoDetectionOrDefault returns the configured detection mode, defaulting
// to always.
func (s *Settings) AutoDetectionOrDefault() model.AutoDetection {
	switch model.AutoDetection(s.AutoDetection) {
	case model.DetectRightClickOnly:
		return model.DetectRightClickOnly
	case model.DetectDisabled:
		return model.DetectDisabled
	default:
		return model.DetectAlways
	}
}

// ModelFor returns the configured model for id, or "" when unset (the
// adapter then falls back to its default model).
func (s *Settings) ModelFor(id model.ProviderID) string {
	return s.Providers[string(id)].Model
}

// InstructionsFor resolves the rewrite instructions for id: the preset text,
// or the custom preset when "Custom" is selected. Missing values fall back
// to the default preset rather than failing.
func (s *Settings) InstructionsFor(id model.ProviderID) string {
	ps := s.Providers[string(id)]
	preset := ps.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	if preset == PresetCustom {
		if ps.CustomPreset != "" {
			return ps.CustomPreset
		}
		return DefaultPreset
	}
	return preset
}

// Snapshot is one rewrite attempt's view of settings plus credentials.
// It is fetched fresh per request and never cached, since keys and models
// may change between calls.
type Snapshot struct {
	Settings
	Keys map[model.ProviderID]string
}

// APIKey returns the stored key for id, or "".
func (s *Snapshot) APIKey(id model.ProviderID) string {
	return s.Keys[id]
}

// SettingsStore reads and writes the settings file.
type SettingsStore struct {
	path  string
	creds *CredentialStore
}

// NewSettingsStore creates a store over <dataDir>/settings.toml backed by
// creds for API keys. creds may be nil when no credential store is loaded.
func NewSettingsStore(dataDir string, creds *CredentialStore) *SettingsStore {
	return &SettingsStore{
		path:  filepath.Join(dataDir, "settings.toml"),
		creds: creds,
	}
}

// Path returns the settings file path, for the change watcher.
func (st *SettingsStore) Path() string {
	return st.path
}

// Load reads the settings file fresh. A missing file or missing keys fall
// back to defaults rather than failing; a malformed file is an error.
func (st *SettingsStore) Load() (*Settings, error) {
	s := DefaultSettings()
	if !FileExists(st.path) {
		return s, nil
	}
	if _, err := toml.DecodeFile(st.path, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}

// Snapshot loads settings and credentials together for one attempt.
func (st *SettingsStore) Snapshot() (*Snapshot, error) {
	s, err := st.Load()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Settings: *s, Keys: make(map[model.ProviderID]string)}
	if st.creds != nil {
		for _, id := range []model.ProviderID{model.ProviderOpenAI, model.ProviderAnthropic, model.ProviderGemini} {
			if key := st.creds.Get(string(id)); key != "" {
				snap.Keys[id] = key
			}
		}
	}
	return snap, nil
}

// Save writes the settings file. Only the options surface calls this; the
// hub's own reads stay fire-and-forget.
func (st *SettingsStore) Save(s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	// 0600 - settings name the active provider and models.
	f, err := os.OpenFile(st.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return nil
}
