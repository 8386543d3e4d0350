package limiter

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	//go:embed scripts/token_bucket.lua
	tokenBucketSource string
	//go:embed scripts/leaky_bucket.lua
	leakyBucketSource string
	//go:embed scripts/fixed_window.lua
	fixedWindowSource string
	//go:embed scripts/sliding_window.lua
	slidingWindowSource string
)

// One script per algorithm. Script.Run tries EVALSHA first and falls back to EVAL on
// NOSCRIPT, so a flushed script cache reloads itself on the next call.
var redisScripts = map[Algorithm]*redis.Script{
	TokenBucket:   redis.NewScript(tokenBucketSource),
	LeakyBucket:   redis.NewScript(leakyBucketSource),
	FixedWindow:   redis.NewScript(fixedWindowSource),
	SlidingWindow: redis.NewScript(slidingWindowSource),
}

// redisStore implements the Store interface on Redis (or Valkey) using Lua scripts for atomicity.
// Time is read with TIME inside the scripts, so every client shares the server's clock.
type redisStore struct {
	client  redis.Cmdable
	prefix  string
	timeout time.Duration
	nonce   func() string
}

// RedisOption configures a Redis store.
type RedisOption func(*redisStore)

// WithKeyPrefix sets the prefix of every key written to Redis. Default is "throttle:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *redisStore) {
		s.prefix = prefix
	}
}

// WithTimeout bounds every script call. A stalled store surfaces as ErrStoreUnavailable
// wrapping the timeout error. Zero or negative disables the store-side bound and
// leaves only the caller's context. Default is 5 seconds.
func WithTimeout(d time.Duration) RedisOption {
	return func(s *redisStore) {
		s.timeout = d
	}
}

// NewRedisStore creates a Redis admission store on client, which may be a single node,
// a cluster or a ring. The store never closes the client.
//
// The client should have MaxRetries set to -1 so a script is never sent twice, and
// ContextTimeoutEnabled set so WithTimeout bounds socket I/O. Configure does both.
func NewRedisStore(client redis.Cmdable, opts ...RedisOption) Store {
	return newRedisStore(client, opts...)
}

func newRedisStore(client redis.Cmdable, opts ...RedisOption) *redisStore {
	s := &redisStore{
		client:  client,
		prefix:  defaultKeyPrefix,
		timeout: defaultTimeout,
		nonce:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load registers all scripts with SCRIPT LOAD. It is idempotent and optional:
// Admit loads a missing script on first use.
func (s *redisStore) Load(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	for alg, script := range redisScripts {
		if err := script.Load(ctx, s.client).Err(); err != nil {
			log.Error().Err(err).Str("algorithm", alg.String()).Msg("failed to load admission script")
			return storeError("script load "+alg.String(), err)
		}
	}
	log.Debug().Int("scripts", len(redisScripts)).Msg("admission scripts loaded")
	return nil
}

// Admit implements the Store interface by running the limit's script once against the key.
func (s *redisStore) Admit(ctx context.Context, key string, weight float64, limit Limit) (bool, error) {
	if err := limit.Validate(); err != nil {
		return false, err
	}
	if err := validateWeight(weight); err != nil {
		return false, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	storeKey := s.key(limit.Algorithm, key)
	args := []any{weight, limit.Capacity}
	switch limit.Algorithm {
	case TokenBucket, LeakyBucket:
		args = append(args, limit.Rate)
	case FixedWindow:
		args = append(args, limit.windowMillis())
	case SlidingWindow:
		args = append(args, limit.windowMillis(), s.nonce())
	}

	result, err := redisScripts[limit.Algorithm].Run(ctx, s.client, []string{storeKey}, args...).Int64()
	if err != nil {
		log.Error().Err(err).Str("key", storeKey).Str("algorithm", limit.Algorithm.String()).Msg("redis admission script failed")
		return false, storeError(fmt.Sprintf("%s %s", limit.Algorithm, storeKey), err)
	}

	allowed := result == 1
	log.Debug().Str("key", storeKey).Float64("weight", weight).Bool("allowed", allowed).Msg("redis admission checked")
	return allowed, nil
}

func (s *redisStore) key(alg Algorithm, key string) string {
	return s.prefix + alg.String() + ":" + key
}

func (s *redisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
