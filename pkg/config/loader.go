package config

import (
	"fmt"
	"os"
	"strconv"
)

// Initialize loads, validates, and returns ready-to-use configuration from
// the environment. This is the primary entry point, mirroring the teacher's
// config.Initialize(ctx, configDir) shape but reading env vars instead of
// YAML files (SPEC_FULL.md §6).
func Initialize() (*Config, error) {
	cfg := &Config{
		Queue:    DefaultQueueConfig(),
		Timeouts: DefaultTimeoutsConfig(),
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, NewValidationError("DATABASE_URL", ErrMissingRequiredField)
	}

	cfg.CacheURL = os.Getenv("CACHE_URL")
	if cfg.CacheURL == "" {
		return nil, NewValidationError("CACHE_URL", ErrMissingRequiredField)
	}

	cfg.WebSearchKey = os.Getenv("WEB_SEARCH_KEY")

	provider, err := loadLLMProvider()
	if err != nil {
		return nil, err
	}
	cfg.LLMProviderRegistry = NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"default": provider,
	})

	cfg.Auth = &AuthConfig{
		Enabled:   envBool("API_AUTH_ENABLED", false),
		SecretKey: os.Getenv("API_SECRET_KEY"),
	}
	if cfg.Auth.Enabled && cfg.Auth.SecretKey == "" {
		return nil, NewValidationError("API_SECRET_KEY", ErrMissingRequiredField)
	}

	cfg.TaskMaxRejections = envInt("TASK_MAX_REJECTIONS", 3)
	cfg.MetricsPort = envInt("METRICS_PORT", 0)

	if v := os.Getenv("QUEUE_WORKER_COUNT"); v != "" {
		cfg.Queue.WorkerCount = envInt("QUEUE_WORKER_COUNT", cfg.Queue.WorkerCount)
	}
	if v := os.Getenv("QUEUE_POLL_INTERVAL"); v != "" {
		cfg.Queue.PollInterval = envDuration("QUEUE_POLL_INTERVAL", cfg.Queue.PollInterval)
	}
	if v := os.Getenv("QUEUE_POLL_JITTER"); v != "" {
		cfg.Queue.PollIntervalJitter = envDuration("QUEUE_POLL_JITTER", cfg.Queue.PollIntervalJitter)
	}
	if v := os.Getenv("QUEUE_SESSION_TIMEOUT"); v != "" {
		cfg.Queue.HandlerTimeout = envDuration("QUEUE_SESSION_TIMEOUT", cfg.Queue.HandlerTimeout)
	}
	if v := os.Getenv("LLM_CALL_TIMEOUT"); v != "" {
		cfg.Timeouts.LLMCall = envDuration("LLM_CALL_TIMEOUT", cfg.Timeouts.LLMCall)
	}
	if v := os.Getenv("TOOL_CALL_TIMEOUT"); v != "" {
		cfg.Timeouts.ToolCall = envDuration("TOOL_CALL_TIMEOUT", cfg.Timeouts.ToolCall)
	}

	return cfg, nil
}

// loadLLMProvider picks a backend based on which credential set is present:
// an OpenAI-compatible key takes precedence when both are configured, since
// it's the cheaper path to stand up in local development.
func loadLLMProvider() (*LLMProviderConfig, error) {
	if key := os.Getenv("OPENAI_COMPATIBLE_KEY"); key != "" {
		model := os.Getenv("OPENAI_COMPATIBLE_MODEL")
		if model == "" {
			return nil, NewValidationError("OPENAI_COMPATIBLE_MODEL", ErrMissingRequiredField)
		}
		return &LLMProviderConfig{
			Backend:   LLMBackendOpenAICompat,
			APIKey:    key,
			Model:     model,
			MaxTokens: 4096,
		}, nil
	}

	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("%w: set OPENAI_COMPATIBLE_KEY or ANTHROPIC_API_KEY", ErrMissingRequiredField)
	}
	model := os.Getenv("ANTHROPIC_MODEL")
	return &LLMProviderConfig{
		Backend:   LLMBackendAnthropic,
		APIKey:    key,
		Model:     model,
		MaxTokens: 4096,
	}, nil
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
