package limiter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Valkey speaks the Redis protocol; its URL schemes map onto the Redis ones.
var schemeAliases = map[string]string{
	"redis":   "redis",
	"rediss":  "rediss",
	"unix":    "unix",
	"valkey":  "redis",
	"valkeys": "rediss",
}

// Client is an explicit handle on a shared counter store connection.
type Client struct {
	rdb   *redis.Client
	store *redisStore
}

// Configure parses storeURL and creates a Client. No network I/O happens here;
// use Ping or Load to verify the store is reachable.
//
// Supported schemes are redis, rediss, unix, valkey and valkeys. An empty URL or any other
// scheme returns ErrInvalidConfig.
func Configure(storeURL string, opts ...RedisOption) (*Client, error) {
	if strings.TrimSpace(storeURL) == "" {
		return nil, fmt.Errorf("%w: store url cannot be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse store url: %w", ErrInvalidConfig, err)
	}
	scheme, ok := schemeAliases[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported store url scheme %q", ErrInvalidConfig, u.Scheme)
	}
	u.Scheme = scheme

	redisOpts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	// A script that reached the store may already have spent capacity, so it is never resent.
	redisOpts.MaxRetries = -1
	// Socket reads and writes stop at the context deadline set by WithTimeout.
	redisOpts.ContextTimeoutEnabled = true

	rdb := redis.NewClient(redisOpts)
	log.Info().Str("addr", redisOpts.Addr).Int("db", redisOpts.DB).Msg("counter store configured")
	return &Client{
		rdb:   rdb,
		store: newRedisStore(rdb, opts...),
	}, nil
}

// Store returns the Redis-backed Store shared by every limiter created from c.
func (c *Client) Store() Store {
	return c.store
}

// Limiter creates a RateLimiter on the client's store.
func (c *Client) Limiter(name string, limit Limit, opts ...Option) (*RateLimiter, error) {
	return New(c.store, name, limit, opts...)
}

// TokenBucket creates a token bucket limiter. Zero capacity or rate take the defaults (10, 1/s).
func (c *Client) TokenBucket(name string, capacity, refillRate float64, opts ...Option) (*RateLimiter, error) {
	return c.Limiter(name, Limit{Algorithm: TokenBucket, Capacity: orDefault(capacity, DefaultCapacity), Rate: orDefault(refillRate, DefaultRate)}, opts...)
}

// LeakyBucket creates a leaky bucket limiter. Zero capacity or rate take the defaults (10, 1/s).
func (c *Client) LeakyBucket(name string, capacity, leakRate float64, opts ...Option) (*RateLimiter, error) {
	return c.Limiter(name, Limit{Algorithm: LeakyBucket, Capacity: orDefault(capacity, DefaultCapacity), Rate: orDefault(leakRate, DefaultRate)}, opts...)
}

// FixedWindow creates a fixed window limiter. Zero values take the defaults (10 per 1s).
func (c *Client) FixedWindow(name string, capacity float64, window time.Duration, opts ...Option) (*RateLimiter, error) {
	return c.Limiter(name, Limit{Algorithm: FixedWindow, Capacity: orDefault(capacity, DefaultCapacity), Window: windowOrDefault(window)}, opts...)
}

// SlidingWindow creates a sliding window log limiter. Zero values take the defaults (10 per 1s).
func (c *Client) SlidingWindow(name string, capacity float64, window time.Duration, opts ...Option) (*RateLimiter, error) {
	return c.Limiter(name, Limit{Algorithm: SlidingWindow, Capacity: orDefault(capacity, DefaultCapacity), Window: windowOrDefault(window)}, opts...)
}

// Ping checks that the store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.store.withTimeout(ctx)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// Load registers the admission scripts on the store. Safe to call repeatedly.
func (c *Client) Load(ctx context.Context) error {
	return c.store.Load(ctx)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func windowOrDefault(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultWindow
	}
	return d
}
