// Package model defines the provider-agnostic core types for rewritehub.
//
// The hub normalizes three LLM rewrite APIs (OpenAI, Anthropic, Gemini) behind
// the Provider interface defined here. Implementations live in the provider
// package; keeping the interface in model avoids import cycles, since both the
// background orchestrator and the provider package depend on these types.
package model

import "context"

// ProviderID identifies one of the supported rewrite providers.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGemini    ProviderID = "gemini"
)

// ProviderConfig carries the per-attempt credentials and generation knobs.
type ProviderConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// RewriteRequest is the uniform request every adapter accepts. It is built
// once per rewrite attempt and never mutated afterwards.
type RewriteRequest struct {
	Text         string
	Instructions string
	Config       ProviderConfig
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	PromptTokens     int `json:"promptTokens,omitempty"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens,omitempty"`
}

// ProviderResponse is the normalized result of one rewrite call.
//
// Invariant: exactly one of (Success=true, RewrittenText != "") or
// (Success=false, Error != "") holds. Adapters uphold this instead of
// returning Go errors across the contract; retry policy belongs to the
// orchestrator, not to the adapter.
type ProviderResponse struct {
	Success       bool   `json:"success"`
	RewrittenText string `json:"rewrittenText,omitempty"`
	Error         string `json:"error,omitempty"`
	Usage         *Usage `json:"usage,omitempty"`
}

// Provider abstracts one remote rewrite API.
type Provider interface {
	// Name returns the human-readable provider name ("OpenAI", ...).
	Name() string

	// DefaultModel returns the model used when settings carry none.
	DefaultModel() string

	// SupportedModels lists the models the options surface may offer.
	SupportedModels() []string

	// ValidateAPIKey performs a cheap local format check. It is not an
	// authoritative credential check.
	ValidateAPIKey(apiKey string) bool

	// Rewrite issues exactly one HTTP call and normalizes the outcome.
	// All failures, including transport errors, come back as a
	// ProviderResponse with Success=false.
	Rewrite(ctx context.Context, req RewriteRequest) ProviderResponse
}

// Mode selects what happens with a rewrite result.
type Mode string

const (
	ModeAutoReplace Mode = "auto-replace"
	ModePreview     Mode = "preview"
)

// AutoDetection controls how the page agent reacts to selection changes.
type AutoDetection string

const (
	// DetectAlways shows the floating trigger on every non-empty selection.
	DetectAlways AutoDetection = "always"
	// DetectRightClickOnly tracks the selection silently for the context
	// menu but renders no trigger.
	DetectRightClickOnly AutoDetection = "right-click-only"
	// DetectDisabled does neither.
	DetectDisabled AutoDetection = "disabled"
)
