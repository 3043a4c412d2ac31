package config

// DefaultPreset is the rewrite style applied when settings carry none.
const DefaultPreset = "Professional concise"

// PresetCustom selects the user's free-form custom instructions.
const PresetCustom = "Custom"

// PresetOptions lists the rewrite styles the options surface offers. The hub
// never validates against this list; any preset string is passed through to
// the provider as instructions.
var PresetOptions = []string{
	"Professional concise",
	"Friendly & clear",
	"Polish grammar only (no rewording)",
	"Shorten to 1–2 sentences",
	"Make it more assertive",
	"Make it more casual (Friday vibe)",
	"Fix typos, keep tone",
	"Summarize as bullet points (max 5)",
	"Rewrite for Slack (tight & punchy)",
	"Rewrite for email (warm, direct)",
	PresetCustom,
}

// DefaultSettings returns the settings used when the file is missing or a
// key is unset.
func DefaultSettings() *Settings {
	return &Settings{
		Provider:         "openai",
		Mode:             "auto-replace",
		AutoDetection:    "always",
		DebugLogs:        true,
		KeyboardShortcut: "Alt+R",
		Providers: map[string]ProviderSettings{
			"openai":    {Model: "gpt-4o-mini", Preset: DefaultPreset},
			"anthropic": {Model: "claude-3-haiku-20240307", Preset: DefaultPreset},
			"gemini":    {Model: "gemini-1.5-flash-latest", Preset: DefaultPreset},
		},
	}
}

// GenerateSettingsTemplate returns the commented settings file written on
// first run.
func GenerateSettingsTemplate() string {
	return `# rewritehub settings
# Location: <data_directory>/settings.toml
# This file uses TOML format: https://toml.io
# API keys are NOT stored here; see credentials.json / credentials.enc.

# Active provider: "openai", "anthropic" or "gemini"
provider = "openai"

# What happens with a rewrite result: "auto-replace" or "preview"
mode = "auto-replace"

# Selection tracking: "always", "right-click-only" or "disabled"
auto_detection = "always"

# Write diagnostic output to debug.log
debug_logs = true

keyboard_shortcut = "Alt+R"

[providers.openai]
model = "gpt-4o-mini"
preset = "Professional concise"
custom_preset = ""

[providers.anthropic]
model = "claude-3-haiku-20240307"
preset = "Professional concise"
custom_preset = ""

[providers.gemini]
model = "gemini-1.5-flash-latest"
preset = "Professional concise"
custom_preset = ""
`
}
