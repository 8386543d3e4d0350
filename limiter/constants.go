package limiter

import (
	"fmt"
	"strings"
	"time"
)

// Algorithm selects the admission discipline used by a limit.
type Algorithm int

// Algorithms
const (
	TokenBucket Algorithm = iota + 1
	LeakyBucket
	FixedWindow
	SlidingWindow
)

// Defaults used by the Client shortcut constructors.
const (
	DefaultCapacity = 10
	DefaultRate     = 1.0
	DefaultWindow   = time.Second
	DefaultWeight   = 1.0
)

const (
	defaultKeyPrefix = "throttle:"
	defaultTimeout   = 5 * time.Second
)

var algorithmNames = map[Algorithm]string{
	TokenBucket:   "token_bucket",
	LeakyBucket:   "leaky_bucket",
	FixedWindow:   "fixed_window",
	SlidingWindow: "sliding_window",
}

// String returns the snake_case name used in config files, store keys and metrics.
func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// IsBucket reports whether the algorithm is parameterised by a rate rather than a window.
func (a Algorithm) IsBucket() bool {
	return a == TokenBucket || a == LeakyBucket
}

// ParseAlgorithm converts a name such as "token_bucket" or "sliding-window" to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for alg, name := range algorithmNames {
		if name == norm {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if _, ok := algorithmNames[a]; !ok {
		return nil, fmt.Errorf("%w: unknown algorithm %d", ErrInvalidConfig, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so algorithms can be named in YAML.
func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}
