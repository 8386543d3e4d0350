// Package meta carries request-scoped admission metadata within a context.Context.
// Interceptors read it to decide which key a call is charged to and how much it weighs.
package meta

import (
	"context"

	"github.com/rs/zerolog/log"
)

// admissionKey is the private key type used for context.WithValue.
// Using a private type prevents collisions with other context keys.
type admissionKey struct{}

// Admission holds the values an interceptor uses when admitting a call.
// Zero fields mean "use the interceptor's default".
type Admission struct {
	Key    string
	Weight float64
}

// WithKey returns a context whose calls are charged to key.
func WithKey(ctx context.Context, key string) context.Context {
	a := FromContext(ctx)
	a.Key = key
	return context.WithValue(ctx, admissionKey{}, a)
}

// WithWeight returns a context whose calls weigh w. Non-positive weights are ignored.
func WithWeight(ctx context.Context, w float64) context.Context {
	if w <= 0 {
		log.Warn().Float64("weight", w).Msg("ignoring non-positive admission weight")
		return ctx
	}
	a := FromContext(ctx)
	a.Weight = w
	return context.WithValue(ctx, admissionKey{}, a)
}

// FromContext returns the admission metadata stored in ctx, or a zero Admission.
func FromContext(ctx context.Context) Admission {
	if ctx == nil {
		return Admission{}
	}
	a, _ := ctx.Value(admissionKey{}).(Admission)
	return a
}

// Key returns the admission key in ctx, or fallback when none is set.
func Key(ctx context.Context, fallback string) string {
	if k := FromContext(ctx).Key; k != "" {
		return k
	}
	return fallback
}

// Weight returns the admission weight in ctx, or 1 when none is set.
func Weight(ctx context.Context) float64 {
	if w := FromContext(ctx).Weight; w > 0 {
		return w
	}
	return 1
}
