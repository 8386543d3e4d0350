// Package limiter provides distributed admission control: many independent
// processes agree, through one shared counter store, on whether a weighted call
// may proceed now.
//
// Four algorithms are available:
//
//   - TokenBucket: credit refills at Rate per second up to Capacity; a call takes weight tokens.
//   - LeakyBucket: load drains at Rate per second; a call adds weight if it stays within Capacity.
//   - FixedWindow: Capacity weight per Window; the window ends when the store key expires.
//     Up to 2×Capacity can pass around a window boundary.
//   - SlidingWindow: a log of admitted entries; the weight inside any Window never exceeds Capacity.
//
// Each decision is one Lua script on Redis or Valkey, so the read, compute and write of a
// key's state is atomic and every caller shares the store's clock (TIME). Keys expire once
// they can no longer affect a decision.
//
// Both buckets deny the very first call for an unseen key while they initialise its record.
// The next call sees a full token bucket or an empty leaky bucket.
//
// Errors fall into three groups, checked with errors.Is: ErrInvalidConfig,
// ErrStoreUnavailable and ErrRateLimitExceeded. Nothing is retried automatically.
//
//	client, err := limiter.Configure("redis://localhost:6379/0")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	l, err := client.TokenBucket("greet", 3, 1.0)
//	if err != nil {
//		return err
//	}
//	err = l.Do(ctx, "", func(ctx context.Context) error {
//		return greet(ctx)
//	})
//	if errors.Is(err, limiter.ErrRateLimitExceeded) {
//		// back off
//	}
package limiter
