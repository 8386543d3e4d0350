package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// sweepEvery is the number of Admit calls between full scans for expired records.
const sweepEvery = 1024

// memoryRecord holds the state of one key. Only the field matching the key's algorithm is used.
type memoryRecord struct {
	bucket    *bucketState
	remaining float64
	entries   []logEntry
	expiresAt time.Time
}

// memoryStore implements the Store interface using an in-memory map.
// It applies the same admission rules as the Redis store but is local to the process.
type memoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]*memoryRecord
	calls   int
}

// MemoryOption configures a memory store.
type MemoryOption func(*memoryStore)

// WithClock replaces time.Now as the store clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *memoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory admission store.
func NewMemoryStore(opts ...MemoryOption) Store {
	s := &memoryStore{
		now:     time.Now,
		records: make(map[string]*memoryRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit implements the Store interface for memory storage.
func (s *memoryStore) Admit(ctx context.Context, key string, weight float64, limit Limit) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeError("memory admit", err)
	}
	if err := limit.Validate(); err != nil {
		return false, err
	}
	if err := validateWeight(weight); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now)
	}

	storeKey := limit.Algorithm.String() + ":" + key
	rec := s.records[storeKey]
	if rec != nil && !rec.expiresAt.After(now) {
		delete(s.records, storeKey)
		rec = nil
	}

	var allowed bool
	switch limit.Algorithm {
	case TokenBucket, LeakyBucket:
		var prev *bucketState
		if rec != nil {
			prev = rec.bucket
		}
		var next bucketState
		if limit.Algorithm == TokenBucket {
			allowed, next = tokenBucket(prev, weight, limit, now.UnixMilli())
		} else {
			allowed, next = leakyBucket(prev, weight, limit, now.UnixMilli())
		}
		s.records[storeKey] = &memoryRecord{bucket: &next, expiresAt: now.Add(limit.TTL())}

	case FixedWindow:
		var remaining *float64
		if rec != nil {
			remaining = &rec.remaining
		}
		var left float64
		var write bool
		allowed, left, write = fixedWindow(remaining, weight, limit)
		if write {
			if rec == nil {
				rec = &memoryRecord{expiresAt: now.Add(limit.Window)}
				s.records[storeKey] = rec
			}
			rec.remaining = left
		}

	case SlidingWindow:
		var entries []logEntry
		if rec != nil {
			entries = rec.entries
		}
		entries = append([]logEntry(nil), entries...)
		allowed, entries = slidingWindow(entries, weight, limit, now.UnixMilli(), uuid.NewString())
		switch {
		case allowed:
			s.records[storeKey] = &memoryRecord{entries: entries, expiresAt: now.Add(limit.Window)}
		case rec != nil:
			rec.entries = entries
		}
	}

	log.Debug().Str("key", storeKey).Float64("weight", weight).Bool("allowed", allowed).Msg("memory admission checked")
	return allowed, nil
}

// sweep drops records whose TTL has passed. Called with mu held.
func (s *memoryStore) sweep(now time.Time) {
	for key, rec := range s.records {
		if !rec.expiresAt.After(now) {
			delete(s.records, key)
		}
	}
}
