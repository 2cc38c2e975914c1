package invoker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/openatelier/atelier/internal/capability"
)

// RetryConfig configures exponential backoff for capability dispatch.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerRegistry manages one circuit breaker per capability kind. A flaky
// provider kind trips its breaker without affecting the other kinds.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[capability.Kind]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates an empty breaker registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[capability.Kind]*gobreaker.CircuitBreaker),
	}
}

// Get returns the breaker for the given kind, creating it on first use.
func (r *BreakerRegistry) Get(kind capability.Kind) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[kind]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(kind),
		MaxRequests: 2,
		Interval:    0,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 4
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("capability breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation is not a provider failure.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[kind] = cb
	return cb
}

// dispatchWithRetry invokes the capability with exponential backoff, routed
// through the kind's circuit breaker. Open-breaker and cancellation errors
// are permanent; everything else is retried until the policy gives up.
func dispatchWithRetry(ctx context.Context, c capability.Capability, req capability.Request, cb *gobreaker.CircuitBreaker, cfg RetryConfig) (capability.Response, error) {
	var resp capability.Response

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return c.Invoke(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		resp = result.(capability.Response)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.MaxElapsedTime = cfg.MaxElapsedTime
	policy.Multiplier = cfg.Multiplier
	policy.RandomizationFactor = cfg.RandomizationFactor

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return resp, err
}
