// Package resilience provides the circuit breaker wrapped around every
// vector provider (Postgres, the local fallback, the cloud provider)
// and the embedding client, so a failing dependency degrades
// gracefully instead of blocking the Unified Store's request path,
// plus a generic exponential-backoff Retry helper.
package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps a gobreaker.CircuitBreaker with the construction
// parameters used across providers: trip after MaxFailures
// consecutive failures, half-open retry after ResetTimeout.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// Config configures a Breaker.
type Config struct {
	Name         string
	MaxFailures  uint32
	ResetTimeout time.Duration
}

// NewBreaker constructs a Breaker from cfg, applying defaults for zero
// values.
func NewBreaker(cfg Config) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	resetTimeout := cfg.ResetTimeout
	if resetTimeout == 0 {
		resetTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name: cfg.Name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		Timeout: resetTimeout,
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the circuit breaker. When the breaker is
// open, fn is not invoked and gobreaker.ErrOpenState is returned.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
}

// State reports the breaker's current state for health reporting.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
