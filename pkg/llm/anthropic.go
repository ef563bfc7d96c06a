package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/deepresearch/engine/pkg/config"
)

// anthropicDefaultModel is the generation model used when cfg.Model is empty.
const anthropicDefaultModel = "claude-sonnet-4-5"

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider constructs a Provider backed by the Anthropic SDK.
func NewAnthropicProvider(cfg config.LLMProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic provider: missing api key")
	}
	model := cfg.Model
	if model == "" {
		model = anthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{client: &client, model: model}, nil
}

// Generate implements Provider. req.Tools is not sent to the API and the
// returned Response never carries ToolCalls; RoleTool messages are sent as
// plain user text.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser, RoleTool:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic generate: %w", err)
	}

	resp := &Response{}
	for _, block := range msg.Content {
		if block.Type == "text" {
			resp.Content += block.Text
		}
	}
	return resp, nil
}

// Embed implements Provider. Anthropic has no native embeddings endpoint;
// callers that need embeddings should configure an OpenAICompatProvider
// instead. This method exists so AnthropicProvider fully satisfies the
// interface for generate-only deployments.
func (p *AnthropicProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("anthropic provider: embeddings not supported, configure an openai-compatible provider")
}
