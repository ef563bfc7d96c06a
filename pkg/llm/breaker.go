package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/deepresearch/engine/pkg/metrics"
)

// BreakerProvider wraps a Provider in a circuit breaker so repeated
// upstream failures fail fast instead of piling up retries against a
// degraded LLM backend (SPEC_FULL.md §4.5, §2 row C13). It also applies the
// configured per-call deadline and records call outcomes/duration, so every
// Provider built via NewProvider carries these ambient concerns regardless
// of backend.
type BreakerProvider struct {
	name    string
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewBreakerProvider wraps inner with a breaker named for logging/metrics.
// A zero timeout disables the per-call deadline; a nil metrics sink is a
// no-op (metrics.Metrics methods are nil-receiver safe).
func NewBreakerProvider(name string, inner Provider, timeout time.Duration, m *metrics.Metrics) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerProvider{
		name:    name,
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: timeout,
		metrics: m,
	}
}

func (p *BreakerProvider) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

// Generate implements Provider.
func (p *BreakerProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := p.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	result, err := p.breaker.Execute(func() (any, error) {
		return p.inner.Generate(ctx, req)
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.ObserveLLMCall(p.name, outcome, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("llm breaker: %w", err)
	}
	return result.(*Response), nil
}

// Embed implements Provider.
func (p *BreakerProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := p.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	result, err := p.breaker.Execute(func() (any, error) {
		return p.inner.Embed(ctx, text)
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.ObserveLLMCall(p.name+":embed", outcome, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("llm breaker: %w", err)
	}
	return result.([]float32), nil
}
