package config

import (
	"os"
	"path/filepath"
	"testing"

	"rewritehub/model"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	st := NewSettingsStore(t.TempDir(), nil)

	s, err := st.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.ActiveProvider() != model.ProviderOpenAI {
		t.Errorf("expected openai default, got %s", s.ActiveProvider())
	}
	if s.ModeOrDefault() != model.ModeAutoReplace {
		t.Errorf("expected auto-replace default, got %s", s.ModeOrDefault())
	}
	if s.AutoDetectionOrDefault() != model.DetectAlways {
		t.Errorf("expected always default, got %s", s.AutoDetectionOrDefault())
	}
	if got := s.ModelFor(model.ProviderAnthropic); got != "claude-3-haiku-20240307" {
		t.Errorf("unexpected default anthropic model: %q", got)
	}
}

func TestLoadParsesSettingsFile(t *testing.T) {
	dir := t.TempDir()
	content := `provider = "anthropic"
mode = "preview"
auto_detection = "right-click-only"
debug_logs = false

[providers.anthropic]
model = "claude-3-5-sonnet-20241022"
preset = "Custom"
custom_preset = "Make it sound like a pirate"
`
	if err := os.WriteFile(filepath.Join(dir, "settings.toml"), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}

	st := NewSettingsStore(dir, nil)
	s, err := st.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.ActiveProvider() != model.ProviderAnthropic {
		t.Errorf("expected anthropic, got %s", s.ActiveProvider())
	}
	if s.ModeOrDefault() != model.ModePreview {
		t.Errorf("expected preview mode, got %s", s.ModeOrDefault())
	}
	if s.AutoDetectionOrDefault() != model.DetectRightClickOnly {
		t.Errorf("expected right-click-only, got %s", s.AutoDetectionOrDefault())
	}
	if got := s.ModelFor(model.ProviderAnthropic); got != "claude-3-5-sonnet-20241022" {
		t.Errorf("unexpected model: %q", got)
	}
	if got := s.InstructionsFor(model.ProviderAnthropic); got != "Make it sound like a pirate" {
		t.Errorf("expected the custom preset text, got %q", got)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.toml"), []byte("provider = [unclosed"), 0600); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}

	st := NewSettingsStore(dir, nil)
	if _, err := st.Load(); err == nil {
		t.Fatal("expected an error for a malformed settings file")
	}
}

func TestInstructionsFor(t *testing.T) {
	tests := []struct {
		name   string
		preset string
		custom string
		want   string
	}{
		{"unset falls back to default", "", "", DefaultPreset},
		{"named preset passes through", "Friendly & clear", "", "Friendly & clear"},
		{"custom with text", PresetCustom, "Make it rhyme", "Make it rhyme"},
		{"custom without text falls back", PresetCustom, "", DefaultPreset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Settings{Providers: map[string]ProviderSettings{
				"openai": {Preset: tt.preset, CustomPreset: tt.custom},
			}}
			if got := s.InstructionsFor(model.ProviderOpenAI); got != tt.want {
				t.Errorf("InstructionsFor = %q, want %q", got, tt.want)
			}
		})
	}
}

// Every offered preset must resolve to usable instructions: named presets
// pass through verbatim, and Custom without text falls back to the default.
func TestPresetOptionsResolve(t *testing.T) {
	for _, preset := range PresetOptions {
		s := &Settings{Providers: map[string]ProviderSettings{
			"openai": {Preset: preset},
		}}
		got := s.InstructionsFor(model.ProviderOpenAI)

		want := preset
		if preset == PresetCustom {
			want = DefaultPreset
		}
		if got != want {
			t.Errorf("InstructionsFor(%q) = %q, want %q", preset, got, want)
		}
	}
}

func TestSnapshotMergesCredentials(t *testing.T) {
	creds := NewCredentialStore(SecurityPlainText)
	creds.Set("openai", "sk-test00000000000000000000")
	creds.Set("gemini", "AIzaSyA0000000000000000000000000000000")

	st := NewSettingsStore(t.TempDir(), creds)
	snap, err := st.Snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.APIKey(model.ProviderOpenAI) != "sk-test00000000000000000000" {
		t.Error("openai key missing from snapshot")
	}
	if snap.APIKey(model.ProviderGemini) == "" {
		t.Error("gemini key missing from snapshot")
	}
	if snap.APIKey(model.ProviderAnthropic) != "" {
		t.Error("anthropic key should be absent")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	st := NewSettingsStore(t.TempDir(), nil)

	s := DefaultSettings()
	s.Provider = "gemini"
	s.Mode = "preview"
	if err := st.Save(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := st.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.ActiveProvider() != model.ProviderGemini {
		t.Errorf("expected gemini after round trip, got %s", loaded.ActiveProvider())
	}
	if loaded.ModeOrDefault() != model.ModePreview {
		t.Errorf("expected preview after round trip, got %s", loaded.ModeOrDefault())
	}

	info, err := os.Stat(st.Path())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 settings file, got %o", info.Mode().Perm())
	}
}
