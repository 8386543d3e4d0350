package limiter

import "math"

// bucketState is the persisted state of a token or leaky bucket.
// Value is available tokens for a token bucket and accumulated level for a leaky bucket.
type bucketState struct {
	Value    float64
	LastTime int64 // unix milliseconds
}

// logEntry is one admitted request in a sliding window log.
type logEntry struct {
	At     int64 // unix milliseconds
	Nonce  string
	Weight float64
}

// tokenBucket refills st by the elapsed time and takes weight tokens if available.
// A nil st is a key seen for the first time: the bucket is stored full and the call is denied.
// The returned state is always persisted, so a refill survives a denial.
func tokenBucket(st *bucketState, weight float64, limit Limit, now int64) (bool, bucketState) {
	if st == nil {
		return false, bucketState{Value: limit.Capacity, LastTime: now}
	}
	tokens := math.Min(limit.Capacity, st.Value+elapsedSeconds(st.LastTime, now)*limit.Rate)
	if tokens >= weight {
		return true, bucketState{Value: tokens - weight, LastTime: now}
	}
	return false, bucketState{Value: tokens, LastTime: now}
}

// leakyBucket drains st by the elapsed time and adds weight if it still fits.
// A nil st is a key seen for the first time: the bucket is stored empty and the call is denied.
func leakyBucket(st *bucketState, weight float64, limit Limit, now int64) (bool, bucketState) {
	if st == nil {
		return false, bucketState{Value: 0, LastTime: now}
	}
	level := math.Max(0, st.Value-elapsedSeconds(st.LastTime, now)*limit.Rate)
	if level+weight <= limit.Capacity {
		return true, bucketState{Value: level + weight, LastTime: now}
	}
	return false, bucketState{Value: level, LastTime: now}
}

// fixedWindow decides against the remaining allowance of the current window.
// A nil remaining starts a new window. write reports whether the new value must be stored;
// a denial never writes.
func fixedWindow(remaining *float64, weight float64, limit Limit) (allowed bool, left float64, write bool) {
	if remaining == nil {
		if weight > limit.Capacity {
			return false, 0, false
		}
		return true, limit.Capacity - weight, true
	}
	if weight > *remaining {
		return false, *remaining, false
	}
	return true, *remaining - weight, true
}

// slidingWindow purges entries at or before now-window, then appends a new entry if the
// weight still fits. The purge is returned even on denial.
func slidingWindow(entries []logEntry, weight float64, limit Limit, now int64, nonce string) (bool, []logEntry) {
	cutoff := now - limit.windowMillis()
	kept := entries[:0]
	total := 0.0
	for _, e := range entries {
		if e.At <= cutoff {
			continue
		}
		kept = append(kept, e)
		if e.At <= now {
			total += e.Weight
		}
	}
	if total+weight > limit.Capacity {
		return false, kept
	}
	return true, append(kept, logEntry{At: now, Nonce: nonce, Weight: weight})
}

func elapsedSeconds(last, now int64) float64 {
	if now <= last {
		return 0
	}
	return float64(now-last) / 1000
}
