package limiter

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Store defines the interface for shared admission state.
type Store interface {
	// Admit evaluates one weighted request for key under limit and reports whether it is allowed.
	// The read, compute and write of the key's state must happen as one atomic operation.
	// A denial is (false, nil); errors are reserved for store failures and invalid input.
	Admit(ctx context.Context, key string, weight float64, limit Limit) (bool, error)
}

// Limit is the configuration of one rate limit.
type Limit struct {
	Algorithm Algorithm     `yaml:"algorithm"`
	Capacity  float64       `yaml:"capacity"` // bucket size, or admitted weight per window
	Rate      float64       `yaml:"rate"`     // tokens refilled (token bucket) or leaked (leaky bucket) per second
	Window    time.Duration `yaml:"window"`   // window length for fixed and sliding windows
}

// Validate checks that the limit can be evaluated.
func (l Limit) Validate() error {
	if _, ok := algorithmNames[l.Algorithm]; !ok {
		return fmt.Errorf("%w: unknown algorithm %d", ErrInvalidConfig, int(l.Algorithm))
	}
	if l.Capacity <= 0 || math.IsNaN(l.Capacity) || math.IsInf(l.Capacity, 0) {
		return fmt.Errorf("%w: %s capacity must be positive, got %g", ErrInvalidConfig, l.Algorithm, l.Capacity)
	}
	if l.Algorithm.IsBucket() {
		if l.Rate <= 0 || math.IsNaN(l.Rate) || math.IsInf(l.Rate, 0) {
			return fmt.Errorf("%w: %s rate must be positive, got %g", ErrInvalidConfig, l.Algorithm, l.Rate)
		}
		return nil
	}
	if l.Window < time.Millisecond || l.Window%time.Millisecond != 0 {
		return fmt.Errorf("%w: %s window must be a whole number of milliseconds, at least 1ms, got %s",
			ErrInvalidConfig, l.Algorithm, l.Window)
	}
	return nil
}

// TTL is how long an idle record can still influence a decision.
// Buckets recover fully after capacity/rate seconds; windows after one window.
func (l Limit) TTL() time.Duration {
	if l.Algorithm.IsBucket() {
		return time.Duration(math.Ceil(l.Capacity/l.Rate)+1) * time.Second
	}
	return l.Window
}

func (l Limit) windowMillis() int64 {
	return l.Window.Milliseconds()
}

func validateWeight(weight float64) error {
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: weight must be positive, got %g", ErrInvalidConfig, weight)
	}
	return nil
}
