package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"rewritehub/model"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider rewrites text through the OpenAI chat completions API using
// the official SDK. Instructions are framed as a system message; the text to
// rewrite travels as the user message.
type OpenAIProvider struct {
	baseURL string
}

// NewOpenAIProvider creates an OpenAI adapter. baseURL overrides the API
// endpoint and exists for tests; pass "" for the real API.
func NewOpenAIProvider(baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &OpenAIProvider{baseURL: baseURL}
}

func (p *OpenAIProvider) Name() string         { return "OpenAI" }
func (p *OpenAIProvider) DefaultModel() string { return "gpt-4o-mini" }

func (p *OpenAIProvider) SupportedModels() []string {
	return []string{"gpt-4o-mini", "gpt-4o", "gpt-4-turbo", "gpt-3.5-turbo"}
}

func (p *OpenAIProvider) ValidateAPIKey(apiKey string) bool {
	return strings.HasPrefix(apiKey, "sk-") && len(apiKey) > 20
}

func (p *OpenAIProvider) Rewrite(ctx context.Context, req model.RewriteRequest) model.ProviderResponse {
	start := time.Now()
	logRequest(p.Name(), req)

	// The SDK retries 429/5xx by default; retry policy belongs to the
	// orchestrator, so the adapter must stay a single POST.
	client := openai.NewClient(
		option.WithBaseURL(p.baseURL),
		option.WithAPIKey(req.Config.APIKey),
		option.WithMaxRetries(0),
	)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelOrDefault(req.Config.Model, p.DefaultModel())),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructionFraming(req.Instructions)),
			openai.UserMessage(req.Text),
		},
		Temperature: openai.Float(temperatureOrDefault(req.Config.Temperature)),
		MaxTokens:   openai.Int(int64(maxTokensOrDefault(req.Config.MaxTokens))),
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		resp := model.ProviderResponse{Success: false, Error: p.describeError(err)}
		logResponse(p.Name(), resp, time.Since(start))
		return resp
	}

	resp := p.parseCompletion(completion)
	logResponse(p.Name(), resp, time.Since(start))
	return resp
}

func (p *OpenAIProvider) parseCompletion(completion *openai.ChatCompletion) model.ProviderResponse {
	var rewritten string
	if len(completion.Choices) > 0 {
		rewritten = strings.TrimSpace(completion.Choices[0].Message.Content)
	}
	if rewritten == "" {
		return model.ProviderResponse{
			Success: false,
			Error:   "No rewritten text received from OpenAI",
		}
	}

	resp := model.ProviderResponse{Success: true, RewrittenText: rewritten}
	if u := completion.Usage; u.PromptTokens > 0 || u.CompletionTokens > 0 || u.TotalTokens > 0 {
		resp.Usage = &model.Usage{
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		}
	}
	return resp
}

func (p *OpenAIProvider) describeError(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return fmt.Sprintf("OpenAI API error: %d - %s", apiErr.StatusCode, msg)
	}
	return "Network error: Unable to connect to OpenAI API"
}
