// Package config loads and validates process configuration from the
// environment, the way the teacher's config package loads and validates
// its YAML registries — here there are no agent/chain YAML files to load
// (SPEC_FULL.md §6 fixes configuration to environment variables only), so
// Initialize reduces to reading env vars, applying defaults, and validating.
package config

// Config is the umbrella configuration object returned by Initialize and
// threaded through the rest of the application.
type Config struct {
	// DatabaseURL is the Postgres connection string (DATABASE_URL).
	DatabaseURL string

	// CacheURL is the Redis connection string backing the idempotency
	// cache and the work queue broker (CACHE_URL).
	CacheURL string

	Queue    *QueueConfig
	Timeouts *TimeoutsConfig
	Auth     *AuthConfig

	LLMProviderRegistry *LLMProviderRegistry

	// WebSearchKey is the web search provider credential (WEB_SEARCH_KEY).
	WebSearchKey string

	// TaskMaxRejections bounds researcher retries per task (TASK_MAX_REJECTIONS).
	TaskMaxRejections int

	// MetricsPort is read from METRICS_PORT but nothing uses it; /metrics is
	// always served on the API router's port.
	MetricsPort int
}

// AuthConfig gates the research endpoints behind a shared-secret bearer token.
type AuthConfig struct {
	Enabled   bool
	SecretKey string
}
