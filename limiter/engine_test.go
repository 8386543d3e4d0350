package limiter

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_Scenario(t *testing.T) {
	limit := Limit{Algorithm: TokenBucket, Capacity: 3, Rate: 1}
	now := int64(1_652_174_100_000)

	allowed, st := tokenBucket(nil, 1, limit, now)
	assert.False(t, allowed, "cold key is denied")
	assert.Equal(t, bucketState{Value: 3, LastTime: now}, st)

	for i := 0; i < 3; i++ {
		allowed, st = tokenBucket(&st, 1, limit, now)
		assert.True(t, allowed, "call %d", i+1)
	}
	allowed, st = tokenBucket(&st, 1, limit, now)
	assert.False(t, allowed)

	allowed, st = tokenBucket(&st, 1, limit, now+1000)
	assert.True(t, allowed)
	assert.Equal(t, 0.0, st.Value)
}

func TestTokenBucket_DenialPersistsRefill(t *testing.T) {
	limit := Limit{Algorithm: TokenBucket, Capacity: 10, Rate: 2}
	st := bucketState{Value: 1, LastTime: 0}

	allowed, next := tokenBucket(&st, 5, limit, 500)
	assert.False(t, allowed)
	assert.Equal(t, bucketState{Value: 2, LastTime: 500}, next)
}

func TestTokenBucket_WeightAboveCapacityNeverAdmitted(t *testing.T) {
	limit := Limit{Algorithm: TokenBucket, Capacity: 3, Rate: 100}
	st := bucketState{Value: 3, LastTime: 0}
	for now := int64(0); now < 10_000; now += 1000 {
		var allowed bool
		allowed, st = tokenBucket(&st, 4, limit, now)
		assert.False(t, allowed)
	}
}

func TestLeakyBucket_Scenario(t *testing.T) {
	limit := Limit{Algorithm: LeakyBucket, Capacity: 3, Rate: 1}
	now := int64(1_000_000)

	allowed, st := leakyBucket(nil, 1, limit, now)
	assert.False(t, allowed, "cold key is denied")
	assert.Equal(t, 0.0, st.Value)

	for i := 0; i < 3; i++ {
		allowed, st = leakyBucket(&st, 1, limit, now)
		assert.True(t, allowed, "call %d", i+1)
	}
	allowed, st = leakyBucket(&st, 1, limit, now)
	assert.False(t, allowed)
	assert.Equal(t, 3.0, st.Value)

	allowed, st = leakyBucket(&st, 1, limit, now+1100)
	assert.True(t, allowed)
	assert.InDelta(t, 2.9, st.Value, 1e-9)
}

func TestFixedWindow(t *testing.T) {
	limit := Limit{Algorithm: FixedWindow, Capacity: 3, Window: time.Second}

	allowed, left, write := fixedWindow(nil, 1, limit)
	assert.True(t, allowed)
	assert.True(t, write)
	assert.Equal(t, 2.0, left)

	allowed, left, write = fixedWindow(&left, 2, limit)
	assert.True(t, allowed)
	assert.True(t, write)
	assert.Equal(t, 0.0, left)

	allowed, _, write = fixedWindow(&left, 1, limit)
	assert.False(t, allowed)
	assert.False(t, write, "denial never writes")

	allowed, _, write = fixedWindow(nil, 4, limit)
	assert.False(t, allowed)
	assert.False(t, write)
}

func TestSlidingWindow_Scenario(t *testing.T) {
	limit := Limit{Algorithm: SlidingWindow, Capacity: 3, Window: time.Second}
	var log []logEntry
	var allowed bool

	for i, at := range []int64{0, 100, 200} {
		allowed, log = slidingWindow(log, 1, limit, at, fmt.Sprint(i))
		assert.True(t, allowed, "call at %d", at)
	}
	allowed, log = slidingWindow(log, 1, limit, 300, "x")
	assert.False(t, allowed)
	assert.Len(t, log, 3)

	// the entry at 0 leaves the window at 1000 (boundary is exclusive)
	allowed, log = slidingWindow(log, 1, limit, 1000, "a")
	assert.True(t, allowed)
	allowed, log = slidingWindow(log, 1, limit, 1000, "b")
	assert.False(t, allowed)
	assert.Len(t, log, 3)
}

func TestSlidingWindow_Weighted(t *testing.T) {
	limit := Limit{Algorithm: SlidingWindow, Capacity: 3, Window: time.Second}
	var log []logEntry
	var allowed bool

	allowed, log = slidingWindow(log, 2, limit, 0, "a")
	assert.True(t, allowed)
	allowed, log = slidingWindow(log, 2, limit, 10, "b")
	assert.False(t, allowed)
	allowed, log = slidingWindow(log, 1, limit, 20, "c")
	assert.True(t, allowed)
	assert.Len(t, log, 2)
}

func TestBuckets_CapacityBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, alg := range []Algorithm{TokenBucket, LeakyBucket} {
		limit := Limit{Algorithm: alg, Capacity: 5, Rate: 1.5}
		fn := tokenBucket
		if alg == LeakyBucket {
			fn = leakyBucket
		}

		var st *bucketState
		now := int64(0)
		for i := 0; i < 2000; i++ {
			now += rng.Int63n(2000)
			weight := float64(rng.Intn(4) + 1)
			prev := st
			_, next := fn(st, weight, limit, now)
			assert.GreaterOrEqual(t, next.Value, 0.0, alg.String())
			assert.LessOrEqual(t, next.Value, limit.Capacity, alg.String())
			if prev != nil {
				assert.GreaterOrEqual(t, next.LastTime, prev.LastTime)
			}
			st = &next
		}
	}
}

func TestSlidingWindow_ContinuousBound(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	limit := Limit{Algorithm: SlidingWindow, Capacity: 7, Window: 500 * time.Millisecond}

	var log, admitted []logEntry
	now := int64(0)
	for i := 0; i < 3000; i++ {
		now += rng.Int63n(60)
		weight := float64(rng.Intn(3) + 1)
		var allowed bool
		allowed, log = slidingWindow(log, weight, limit, now, fmt.Sprint(i))
		if allowed {
			admitted = append(admitted, logEntry{At: now, Weight: weight})
		}
	}

	for _, end := range admitted {
		sum := 0.0
		for _, e := range admitted {
			if e.At > end.At-limit.windowMillis() && e.At <= end.At {
				sum += e.Weight
			}
		}
		assert.LessOrEqual(t, sum, limit.Capacity, "window ending at %d", end.At)
	}
}

func TestLimit_Validate(t *testing.T) {
	tests := []struct {
		name  string
		limit Limit
		ok    bool
	}{
		{"token bucket", Limit{Algorithm: TokenBucket, Capacity: 1, Rate: 0.5}, true},
		{"leaky bucket zero rate", Limit{Algorithm: LeakyBucket, Capacity: 1}, false},
		{"negative rate", Limit{Algorithm: TokenBucket, Capacity: 1, Rate: -1}, false},
		{"zero capacity", Limit{Algorithm: FixedWindow, Window: time.Second}, false},
		{"sub-millisecond window", Limit{Algorithm: SlidingWindow, Capacity: 1, Window: time.Microsecond}, false},
		{"fractional millisecond window", Limit{Algorithm: FixedWindow, Capacity: 1, Window: 1500 * time.Microsecond}, false},
		{"fixed window", Limit{Algorithm: FixedWindow, Capacity: 1, Window: time.Second}, true},
		{"unknown algorithm", Limit{Capacity: 1, Rate: 1, Window: time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.limit.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLimit_TTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, Limit{Algorithm: TokenBucket, Capacity: 3, Rate: 1}.TTL())
	assert.Equal(t, 6*time.Second, Limit{Algorithm: LeakyBucket, Capacity: 10, Rate: 2}.TTL())
	assert.Equal(t, 3*time.Second, Limit{Algorithm: TokenBucket, Capacity: 3, Rate: 1.5}.TTL())
	assert.Equal(t, 2*time.Second, Limit{Algorithm: FixedWindow, Capacity: 3, Window: 2 * time.Second}.TTL())
}

func TestParseAlgorithm(t *testing.T) {
	for in, want := range map[string]Algorithm{
		"token_bucket":   TokenBucket,
		"Leaky-Bucket":   LeakyBucket,
		" fixed_window ": FixedWindow,
		"sliding_window": SlidingWindow,
	} {
		got, err := ParseAlgorithm(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAlgorithm("gcra")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "algorithm(42)", Algorithm(42).String())
}
