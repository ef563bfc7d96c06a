package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/deepresearch/engine/pkg/config"
)

const openAICompatDefaultModel = "gpt-4o"

// OpenAICompatProvider calls any OpenAI-compatible HTTP endpoint through
// langchaingo's openai binding (self-hosted gateways, Azure OpenAI, etc.).
type OpenAICompatProvider struct {
	llm   *openai.LLM
	model string
}

// NewOpenAICompatProvider constructs a Provider backed by langchaingo's
// OpenAI-compatible client.
func NewOpenAICompatProvider(cfg config.LLMProviderConfig) (*OpenAICompatProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai-compatible provider: missing api key")
	}
	model := cfg.Model
	if model == "" {
		model = openAICompatDefaultModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai-compatible client: %w", err)
	}

	return &OpenAICompatProvider{llm: client, model: model}, nil
}

// Generate implements Provider. req.Tools is not passed to the model and the
// returned Response never carries ToolCalls.
func (p *OpenAICompatProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, m := range req.Messages {
		content = append(content, llms.TextParts(toLangchainRole(m.Role), m.Content))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	completion, err := p.llm.GenerateContent(ctx, content, llms.WithMaxTokens(maxTokens))
	if err != nil {
		return nil, fmt.Errorf("openai-compatible generate: %w", err)
	}
	if len(completion.Choices) == 0 {
		return &Response{}, nil
	}
	return &Response{Content: completion.Choices[0].Content}, nil
}

// Embed implements Provider.
func (p *OpenAICompatProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("openai-compatible embed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai-compatible embed: empty response")
	}
	return vectors[0], nil
}

func toLangchainRole(role string) llms.ChatMessageType {
	switch role {
	case RoleUser:
		return llms.ChatMessageTypeHuman
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	case RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}
