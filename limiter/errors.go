package limiter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for unusable configuration: an empty or unsupported
	// store URL, non-positive capacity, rate or window, or an invalid weight.
	ErrInvalidConfig = errors.New("limiter: invalid configuration")
	// ErrStoreUnavailable wraps every failure to reach or execute against the counter store,
	// including timeouts and cancellation. It is never returned for a plain denial.
	ErrStoreUnavailable = errors.New("limiter: counter store unavailable")
	// ErrRateLimitExceeded is the denial signal. Allow, Do and Call return an *ExceededError
	// that matches it with errors.Is.
	ErrRateLimitExceeded = errors.New("limiter: rate limit exceeded")
)

// ExceededError describes a denied admission.
type ExceededError struct {
	Limiter string
	Key     string
	Weight  float64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("limiter: %s called too many times (key %q, weight %g), please try again later",
		e.Limiter, e.Key, e.Weight)
}

// Is makes errors.Is(err, ErrRateLimitExceeded) true for any *ExceededError.
func (e *ExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
