package provider

import (
	"time"

	"rewritehub/config"
	"rewritehub/model"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// instructionFraming wraps the user's instructions in the shared rewrite
// prompt. The same framing feeds all three providers; only its placement
// (system message vs user message vs contents part) differs per adapter.
func instructionFraming(instructions string) string {
	return "You are a writing assistant. Rewrite the following text according to these instructions: " +
		instructions + ". Return only the rewritten text, no explanations."
}

func modelOrDefault(m, fallback string) string {
	if m == "" {
		return fallback
	}
	return m
}

func temperatureOrDefault(t float64) float64 {
	if t == 0 {
		return defaultTemperature
	}
	return t
}

func maxTokensOrDefault(n int) int {
	if n == 0 {
		return defaultMaxTokens
	}
	return n
}

// logRequest records the outgoing call without exposing the key.
func logRequest(name string, req model.RewriteRequest) {
	if !config.Debug() {
		return
	}
	instr := req.Instructions
	if len(instr) > 50 {
		instr = instr[:50] + "..."
	}
	config.DebugLog.Printf("[%s API] Request starting: model=%s textLen=%d instructions=%q hasKey=%t",
		name, req.Config.Model, len(req.Text), instr, req.Config.APIKey != "")
}

// logResponse records the normalized outcome and timing.
func logResponse(name string, resp model.ProviderResponse, elapsed time.Duration) {
	if !config.Debug() {
		return
	}
	config.DebugLog.Printf("[%s API] Request completed: success=%t outputLen=%d elapsed=%s hasError=%t",
		name, resp.Success, len(resp.RewrittenText), elapsed, resp.Error != "")
}
