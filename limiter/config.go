package limiter

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// StoreConfig describes the shared counter store.
type StoreConfig struct {
	URL       string        `yaml:"url"`        // redis://, rediss://, unix://, valkey:// or valkeys://
	Timeout   time.Duration `yaml:"timeout"`    // per-call bound, default 5s
	KeyPrefix string        `yaml:"key_prefix"` // default "throttle:"
}

// Rule defines a single named rate limit.
type Rule struct {
	Name  string `yaml:"name"`
	Limit `yaml:",inline"`
}

// Config holds the overall limiter configuration.
type Config struct {
	Store StoreConfig `yaml:"store"`
	Rules []Rule      `yaml:"limits"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(b)
}

// ParseConfig decodes and validates YAML configuration.
func ParseConfig(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the store section and every rule.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("%w: store.url is required", ErrInvalidConfig)
	}
	if c.Store.Timeout < 0 {
		return fmt.Errorf("%w: store.timeout must not be negative, got %s", ErrInvalidConfig, c.Store.Timeout)
	}

	if len(c.Rules) == 0 {
		log.Warn().Msg("no rate limits defined in config")
	}

	seen := make(map[string]bool)
	var errs []error
	for i, rule := range c.Rules {
		if rule.Name == "" {
			errs = append(errs, fmt.Errorf("%w: limit #%d has no name", ErrInvalidConfig, i))
			continue
		}
		if seen[rule.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate limit name %q", ErrInvalidConfig, rule.Name))
			continue
		}
		seen[rule.Name] = true
		if err := rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("limit %q: %w", rule.Name, err))
		}
	}
	return errors.Join(errs...)
}

// redisOptions translates the store section into store options.
func (c *Config) redisOptions() []RedisOption {
	var opts []RedisOption
	if c.Store.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Store.Timeout))
	}
	if c.Store.KeyPrefix != "" {
		opts = append(opts, WithKeyPrefix(c.Store.KeyPrefix))
	}
	return opts
}

// Open configures the store client and builds one RateLimiter per rule, keyed by name.
// The caller owns the returned Client and must Close it.
func (c *Config) Open(opts ...Option) (*Client, map[string]*RateLimiter, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	client, err := Configure(c.Store.URL, c.redisOptions()...)
	if err != nil {
		return nil, nil, err
	}
	limiters, err := NewLimiters(client.Store(), c.Rules, opts...)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, limiters, nil
}

// NewLimiters builds a RateLimiter for each rule on store.
func NewLimiters(store Store, rules []Rule, opts ...Option) (map[string]*RateLimiter, error) {
	limiters := make(map[string]*RateLimiter, len(rules))
	for _, rule := range rules {
		if _, dup := limiters[rule.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate limit name %q", ErrInvalidConfig, rule.Name)
		}
		l, err := New(store, rule.Name, rule.Limit, opts...)
		if err != nil {
			return nil, err
		}
		limiters[rule.Name] = l
	}
	return limiters, nil
}
