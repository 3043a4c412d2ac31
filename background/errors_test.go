package background

import (
	"strings"
	"testing"
)

func TestFriendlyErrorCategories(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		provider string
		want     string
	}{
		{
			name:     "rate limit by status",
			raw:      "OpenAI API error: 429 - You exceeded your current quota",
			provider: "openai",
			want:     "Too many requests! Your openai account has reached its limit. Please try again later or check your billing settings.",
		},
		{
			name:     "rate limit by phrase",
			raw:      "Anthropic API error: 529 - rate limit reached",
			provider: "anthropic",
			want:     "Too many requests! Your anthropic account has reached its limit. Please try again later or check your billing settings.",
		},
		{
			name:     "auth by status",
			raw:      "OpenAI API error: 401 - Incorrect API key provided",
			provider: "openai",
			want:     "Authentication failed! Please check your openai API key in settings.",
		},
		{
			name:     "auth by phrase",
			raw:      "Invalid API key for Gemini",
			provider: "gemini",
			want:     "Authentication failed! Please check your gemini API key in settings.",
		},
		{
			name:     "network",
			raw:      "Network error: Unable to connect to Anthropic API",
			provider: "anthropic",
			want:     "Connection error! Please check your internet connection and try again.",
		},
		{
			name:     "model not available",
			raw:      "OpenAI API error: 404 - The model `gpt-5` does not exist or you do not have access to it",
			provider: "openai",
			want:     "Model not available! The selected openai model may be temporarily unavailable. Please try a different model.",
		},
		{
			name:     "billing",
			raw:      "Anthropic API error: 402 - Your credit balance is too low",
			provider: "anthropic",
			want:     "Billing issue! Please check your anthropic account billing status and add payment method if needed.",
		},
		{
			name:     "generic fallback",
			raw:      "Gemini API error: 503 - Service temporarily overloaded",
			provider: "gemini",
			want:     "Something went wrong with gemini. Please try again or check your settings.",
		},
		{
			name:     "empty error",
			raw:      "",
			provider: "openai",
			want:     "Something went wrong with openai. Please try again or check your settings.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := friendlyError(tt.raw, tt.provider)
			if got != tt.want {
				t.Errorf("friendlyError(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// The first matching bucket wins: a 429 mentioning billing is a rate-limit
// problem, not a billing problem.
func TestFriendlyErrorOrdering(t *testing.T) {
	got := friendlyError("429 - check your billing settings", "openai")
	if !strings.HasPrefix(got, "Too many requests!") {
		t.Errorf("expected rate-limit bucket to win, got %q", got)
	}
}
