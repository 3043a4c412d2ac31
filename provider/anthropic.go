package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"rewritehub/model"
)

const anthropicBaseURL = "https://api.anthropic.com"

// AnthropicProvider rewrites text through the Anthropic messages API using
// the official SDK. Unlike OpenAI there is no system framing here: the
// instructions and the text are concatenated into a single user message.
type AnthropicProvider struct {
	baseURL string
}

// NewAnthropicProvider creates an Anthropic adapter. baseURL overrides the
// API endpoint and exists for tests; pass "" for the real API.
func NewAnthropicProvider(baseURL string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &AnthropicProvider{baseURL: baseURL}
}

func (p *AnthropicProvider) Name() string         { return "Anthropic" }
func (p *AnthropicProvider) DefaultModel() string { return "claude-3-haiku-20240307" }

func (p *AnthropicProvider) SupportedModels() []string {
	return []string{
		"claude-3-haiku-20240307",
		"claude-3-5-sonnet-20240620",
		"claude-3-opus-20240229",
	}
}

func (p *AnthropicProvider) ValidateAPIKey(apiKey string) bool {
	return strings.HasPrefix(apiKey, "sk-ant-") && len(apiKey) > 30
}

func (p *AnthropicProvider) Rewrite(ctx context.Context, req model.RewriteRequest) model.ProviderResponse {
	start := time.Now()
	logRequest(p.Name(), req)

	// The SDK retries 429/5xx by default; retry policy belongs to the
	// orchestrator, so the adapter must stay a single POST.
	client := anthropic.NewClient(
		option.WithBaseURL(p.baseURL),
		option.WithAPIKey(req.Config.APIKey),
		option.WithMaxRetries(0),
	)

	prompt := fmt.Sprintf("%s\n\nText to rewrite: %s", instructionFraming(req.Instructions), req.Text)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(modelOrDefault(req.Config.Model, p.DefaultModel())),
		MaxTokens:   int64(maxTokensOrDefault(req.Config.MaxTokens)),
		Temperature: anthropic.Float(temperatureOrDefault(req.Config.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		resp := model.ProviderResponse{Success: false, Error: p.describeError(err)}
		logResponse(p.Name(), resp, time.Since(start))
		return resp
	}

	resp := p.parseMessage(msg)
	logResponse(p.Name(), resp, time.Since(start))
	return resp
}

func (p *AnthropicProvider) parseMessage(msg *anthropic.Message) model.ProviderResponse {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	rewritten := strings.TrimSpace(sb.String())
	if rewritten == "" {
		return model.ProviderResponse{
			Success: false,
			Error:   "No rewritten text received from Anthropic",
		}
	}

	resp := model.ProviderResponse{Success: true, RewrittenText: rewritten}
	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		resp.Usage = &model.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		}
	}
	return resp
}

func (p *AnthropicProvider) describeError(err error) string {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// The upstream message sits in the error envelope's JSON body.
		var payload struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := "Unknown error"
		if raw := apiErr.RawJSON(); raw != "" {
			if json.Unmarshal([]byte(raw), &payload) == nil && payload.Error.Message != "" {
				msg = payload.Error.Message
			}
		}
		return fmt.Sprintf("Anthropic API error: %d - %s", apiErr.StatusCode, msg)
	}
	return "Network error: Unable to connect to Anthropic API"
}
