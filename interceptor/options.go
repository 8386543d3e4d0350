// Package interceptor admits gRPC and HTTP calls through a limiter.RateLimiter before they
// reach the wrapped handler. A denied call never reaches the handler.
package interceptor

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/toolink/throttle/limiter"
	"github.com/toolink/throttle/meta"
)

// KeyFunc derives the admission key for a call. method is the gRPC full method name or
// the HTTP request path. An empty result charges the limiter as a whole.
type KeyFunc func(ctx context.Context, method string) string

type options struct {
	keyFunc  KeyFunc
	failOpen bool
}

// Option configures an interceptor.
type Option func(*options)

// WithKeyFunc sets how the admission key is derived. By default the key set with
// meta.WithKey is used, falling back to the method.
func WithKeyFunc(fn KeyFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.keyFunc = fn
		}
	}
}

// WithFailOpen lets calls through when the counter store is unavailable.
// The default is to fail closed.
func WithFailOpen(failOpen bool) Option {
	return func(o *options) {
		o.failOpen = failOpen
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		keyFunc: func(ctx context.Context, method string) string {
			return meta.Key(ctx, method)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// admit runs the limiter for one call. It returns nil when the call may proceed.
func (o *options) admit(ctx context.Context, l *limiter.RateLimiter, method string) error {
	key := o.keyFunc(ctx, method)
	err := l.Allow(ctx, key, meta.Weight(ctx))
	if err == nil {
		return nil
	}
	if o.failOpen && errors.Is(err, limiter.ErrStoreUnavailable) {
		log.Warn().Err(err).Str("limiter", l.Name()).Str("method", method).Msg("counter store unavailable, failing open")
		return nil
	}
	return err
}
