package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RateLimiter binds a logical resource name to one algorithm and limit.
// It holds no mutable state; all admission state lives in the Store.
type RateLimiter struct {
	name    string
	limit   Limit
	store   Store
	metrics *Metrics
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithMetrics records every decision in m.
func WithMetrics(m *Metrics) Option {
	return func(l *RateLimiter) {
		l.metrics = m
	}
}

// New creates a RateLimiter. The limit is validated here so that configuration errors
// surface at setup rather than on the first call.
func New(store Store, name string, limit Limit, opts ...Option) (*RateLimiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: limiter name is required", ErrInvalidConfig)
	}
	if err := limit.Validate(); err != nil {
		return nil, fmt.Errorf("limiter %s: %w", name, err)
	}

	l := &RateLimiter{
		name:  name,
		limit: limit,
		store: store,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Name returns the resource name the limiter is bound to.
func (l *RateLimiter) Name() string {
	return l.name
}

// Limit returns the limiter's configuration.
func (l *RateLimiter) Limit() Limit {
	return l.limit
}

// Admit reports whether a request of the given weight may proceed now.
// An empty key limits the resource as a whole; otherwise state is kept per "name:key".
// A weight of 0 means the default weight of 1.
func (l *RateLimiter) Admit(ctx context.Context, key string, weight float64) (bool, error) {
	if weight == 0 {
		weight = DefaultWeight
	}

	start := time.Now()
	allowed, err := l.store.Admit(ctx, l.resourceKey(key), weight, l.limit)
	l.metrics.observe(l.name, l.limit.Algorithm, allowed, err, time.Since(start))
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// Allow is Admit with the denial expressed as an *ExceededError.
func (l *RateLimiter) Allow(ctx context.Context, key string, weight float64) error {
	allowed, err := l.Admit(ctx, key, weight)
	if err != nil {
		return err
	}
	if !allowed {
		if weight == 0 {
			weight = DefaultWeight
		}
		log.Debug().Str("limiter", l.name).Str("key", key).Float64("weight", weight).Msg("rate limit exceeded")
		return &ExceededError{Limiter: l.name, Key: key, Weight: weight}
	}
	return nil
}

// Do admits one default-weight request for key and runs fn only if it was allowed.
// Denials and store errors are returned without calling fn.
func (l *RateLimiter) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	if err := l.Allow(ctx, key, DefaultWeight); err != nil {
		return err
	}
	return fn(ctx)
}

// Call is the value-returning form of Do.
func Call[T any](ctx context.Context, l *RateLimiter, key string, fn func(context.Context) (T, error)) (T, error) {
	if err := l.Allow(ctx, key, DefaultWeight); err != nil {
		var zero T
		return zero, err
	}
	return fn(ctx)
}

func (l *RateLimiter) resourceKey(key string) string {
	if key == "" {
		return l.name
	}
	return l.name + ":" + key
}
