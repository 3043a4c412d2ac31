package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rewritehub/model"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider rewrites text through the Google generative language API.
// Gemini takes the API key as a URL query parameter rather than a header, and
// wraps content in a contents/parts structure, so this adapter speaks the
// wire format directly over net/http.
type GeminiProvider struct {
	baseURL string
	client  *http.Client
}

// NewGeminiProvider creates a Gemini adapter. baseURL overrides the API
// endpoint and exists for tests; pass "" for the real API.
func NewGeminiProvider(baseURL string) *GeminiProvider {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiProvider{baseURL: baseURL, client: http.DefaultClient}
}

func (p *GeminiProvider) Name() string         { return "Gemini" }
func (p *GeminiProvider) DefaultModel() string { return "gemini-1.5-flash-latest" }

func (p *GeminiProvider) SupportedModels() []string {
	return []string{"gemini-1.5-flash-latest", "gemini-1.5-pro-latest"}
}

func (p *GeminiProvider) ValidateAPIKey(apiKey string) bool {
	return strings.HasPrefix(apiKey, "AIza") && len(apiKey) > 30
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Config   geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (p *GeminiProvider) Rewrite(ctx context.Context, req model.RewriteRequest) model.ProviderResponse {
	start := time.Now()
	logRequest(p.Name(), req)

	resp := p.call(ctx, req)
	logResponse(p.Name(), resp, time.Since(start))
	return resp
}

func (p *GeminiProvider) call(ctx context.Context, req model.RewriteRequest) model.ProviderResponse {
	prompt := fmt.Sprintf("%s\n\nText to rewrite: %s", instructionFraming(req.Instructions), req.Text)
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		Config: geminiGenConfig{
			Temperature:     temperatureOrDefault(req.Config.Temperature),
			MaxOutputTokens: maxTokensOrDefault(req.Config.MaxTokens),
			TopP:            0.8,
			TopK:            10,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return model.ProviderResponse{Success: false, Error: fmt.Sprintf("Gemini request encoding failed: %v", err)}
	}

	// The key rides in the URL, so transport errors must never echo it.
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.baseURL, modelOrDefault(req.Config.Model, p.DefaultModel()), req.Config.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.ProviderResponse{Success: false, Error: "Network error: Unable to connect to Gemini API"}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return model.ProviderResponse{Success: false, Error: "Network error: Unable to connect to Gemini API"}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return model.ProviderResponse{Success: false, Error: "Network error: Unable to connect to Gemini API"}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return model.ProviderResponse{Success: false, Error: p.describeHTTPError(httpResp.StatusCode, respBody)}
	}

	return p.parseResponse(respBody)
}

func (p *GeminiProvider) describeHTTPError(status int, body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := "Unknown error"
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		msg = payload.Error.Message
	}
	if status == http.StatusBadRequest && strings.Contains(msg, "API key") {
		return "Invalid API key for Gemini"
	}
	return fmt.Sprintf("Gemini API error: %d - %s", status, msg)
}

func (p *GeminiProvider) parseResponse(body []byte) model.ProviderResponse {
	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.ProviderResponse{Success: false, Error: "No rewritten text received from Gemini"}
	}

	var rewritten string
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		rewritten = strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	}
	if rewritten == "" {
		if len(parsed.Candidates) > 0 && parsed.Candidates[0].FinishReason == "SAFETY" {
			return model.ProviderResponse{
				Success: false,
				Error:   "Content was blocked due to safety filters",
			}
		}
		return model.ProviderResponse{
			Success: false,
			Error:   "No rewritten text received from Gemini",
		}
	}

	resp := model.ProviderResponse{Success: true, RewrittenText: rewritten}
	u := parsed.UsageMetadata
	if u.PromptTokenCount > 0 || u.CandidatesTokenCount > 0 || u.TotalTokenCount > 0 {
		resp.Usage = &model.Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return resp
}
