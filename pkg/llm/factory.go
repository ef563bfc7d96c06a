package llm

import (
	"fmt"
	"time"

	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/metrics"
)

// NewProvider builds the concrete Provider for a registered LLM backend
// config, wrapped in a circuit breaker that also applies callTimeout to
// every call and records outcomes through m (nil is fine on both).
func NewProvider(name string, cfg config.LLMProviderConfig, callTimeout time.Duration, m *metrics.Metrics) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch cfg.Backend {
	case config.LLMBackendAnthropic:
		provider, err = NewAnthropicProvider(cfg)
	case config.LLMBackendOpenAICompat:
		provider, err = NewOpenAICompatProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrLLMProviderNotFound, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s provider %q: %w", cfg.Backend, name, err)
	}

	return NewBreakerProvider(name, provider, callTimeout, m), nil
}
