package config

import (
	"fmt"
	"sync"
)

// LLMProviderConfig configures a single named LLM provider. APIKey, Model
// and BaseURL are shared across both backends: for LLMBackendAnthropic they
// configure anthropic-sdk-go directly (ANTHROPIC_API_KEY / ANTHROPIC_MODEL);
// for LLMBackendOpenAICompat they configure the langchaingo openai client
// against any OpenAI-compatible endpoint (OPENAI_COMPATIBLE_KEY / _MODEL).
type LLMProviderConfig struct {
	Backend LLMBackend

	APIKey  string
	Model   string
	BaseURL string

	MaxTokens int
}

// LLMProviderRegistry stores LLM provider configurations with thread-safe access,
// mirroring the teacher's registry-over-map idiom used for every named
// configuration set (agents, chains, MCP servers, providers).
type LLMProviderRegistry struct {
	providers map[string]*LLMProviderConfig
	mu        sync.RWMutex
}

// NewLLMProviderRegistry creates a registry from a defensively-copied map.
func NewLLMProviderRegistry(providers map[string]*LLMProviderConfig) *LLMProviderRegistry {
	copied := make(map[string]*LLMProviderConfig, len(providers))
	for k, v := range providers {
		copied[k] = v
	}
	return &LLMProviderRegistry{providers: copied}
}

// Get retrieves a provider configuration by name.
func (r *LLMProviderRegistry) Get(name string) (*LLMProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLLMProviderNotFound, name)
	}
	return p, nil
}

// Default returns the single configured provider when exactly one is registered,
// which is the common case for this service (no per-request provider selection).
func (r *LLMProviderRegistry) Default() (*LLMProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers["default"]; ok {
		return p, nil
	}
	for _, p := range r.providers {
		return p, nil
	}
	return nil, fmt.Errorf("%w: no providers configured", ErrLLMProviderNotFound)
}

// Len returns the number of registered providers.
func (r *LLMProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
