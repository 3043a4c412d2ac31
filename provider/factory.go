// Package provider implements the rewrite adapters for the three supported
// LLM APIs plus the registry that maps provider ids to adapter singletons.
//
// Each adapter normalizes one HTTP API behind model.Provider: it builds the
// provider-specific payload and auth, issues exactly one POST per call,
// parses the success payload, and converts every failure mode into a
// ProviderResponse with Success=false. Adapters never retry and never log
// the API key; retry and fallback policy belongs to the background package.
package provider

import (
	"fmt"

	"rewritehub/model"
)

var registry = map[model.ProviderID]model.Provider{
	model.ProviderOpenAI:    NewOpenAIProvider(""),
	model.ProviderAnthropic: NewAnthropicProvider(""),
	model.ProviderGemini:    NewGeminiProvider(""),
}

// Get returns the adapter singleton for id. Unknown ids fail fast; callers
// must never be handed a silently-defaulted provider.
func Get(id model.ProviderID) (model.Provider, error) {
	p, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", id)
	}
	return p, nil
}

// IDs returns the supported provider ids in stable order.
func IDs() []model.ProviderID {
	return []model.ProviderID{model.ProviderOpenAI, model.ProviderAnthropic, model.ProviderGemini}
}

// IsValid reports whether name is a supported provider id.
func IsValid(name string) bool {
	_, ok := registry[model.ProviderID(name)]
	return ok
}

// DefaultModel returns the default model for id.
func DefaultModel(id model.ProviderID) (string, error) {
	p, err := Get(id)
	if err != nil {
		return "", err
	}
	return p.DefaultModel(), nil
}

// SupportedModels returns the model list for id.
func SupportedModels(id model.ProviderID) ([]string, error) {
	p, err := Get(id)
	if err != nil {
		return nil, err
	}
	return p.SupportedModels(), nil
}

// ValidateAPIKey runs the provider's local key format check.
func ValidateAPIKey(id model.ProviderID, apiKey string) (bool, error) {
	p, err := Get(id)
	if err != nil {
		return false, err
	}
	return p.ValidateAPIKey(apiKey), nil
}
