package interceptor

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/toolink/throttle/limiter"
)

// HTTPMiddleware admits each request before passing it to next.
// Denials get 429 Too Many Requests and store failures 503 Service Unavailable.
func HTTPMiddleware(l *limiter.RateLimiter, opts ...Option) func(http.Handler) http.Handler {
	o := newOptions(opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := o.admit(r.Context(), l, r.URL.Path)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, limiter.ErrRateLimitExceeded):
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
			case errors.Is(err, limiter.ErrStoreUnavailable):
				log.Error().Err(err).Str("path", r.URL.Path).Msg("rate limit check failed")
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
			default:
				log.Error().Err(err).Str("path", r.URL.Path).Msg("rate limit check failed")
				http.Error(w, "rate limiter error", http.StatusInternalServerError)
			}
		})
	}
}
