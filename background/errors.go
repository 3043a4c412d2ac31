package background

import (
	"fmt"
	"strings"
)

// friendlyError maps a raw provider error onto the message shown to the user.
// Matching is ordered case-insensitive substring inspection; the first bucket
// wins. provider is the lowercase provider id, interpolated verbatim.
func friendlyError(rawErr, provider string) string {
	if rawErr == "" {
		rawErr = "Failed to get rewritten text"
	}

	lower := strings.ToLower(rawErr)
	contains := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("429", "quota", "rate limit"):
		return fmt.Sprintf("Too many requests! Your %s account has reached its limit. Please try again later or check your billing settings.", provider)
	case contains("401", "unauthorized", "invalid api key"):
		return fmt.Sprintf("Authentication failed! Please check your %s API key in settings.", provider)
	case contains("network", "connection", "timeout"):
		return "Connection error! Please check your internet connection and try again."
	case contains("model", "not found"):
		return fmt.Sprintf("Model not available! The selected %s model may be temporarily unavailable. Please try a different model.", provider)
	case contains("billing", "payment", "credit"):
		return fmt.Sprintf("Billing issue! Please check your %s account billing status and add payment method if needed.", provider)
	default:
		return fmt.Sprintf("Something went wrong with %s. Please try again or check your settings.", provider)
	}
}
