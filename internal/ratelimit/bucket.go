package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucketState struct {
	tokens     int
	lastRefill time.Time
}

// TokenBucket is an in-memory per-key token bucket. One token is restored
// every refill interval up to capacity; a request consumes one token.
// Suitable for single-instance deployments; use RedisBucket when the
// service runs replicated.
type TokenBucket struct {
	mu        sync.Mutex
	buckets   map[string]*bucketState
	capacity  int
	refill    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewTokenBucket(capacity int, refill time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		buckets:  make(map[string]*bucketState),
		capacity: capacity,
		refill:   refill,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (b *TokenBucket) WithClock(now func() time.Time) *TokenBucket {
	b.now = now
	return b
}

func (b *TokenBucket) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.evictIdle(now)
	state, ok := b.buckets[key]
	if !ok {
		state = &bucketState{tokens: b.capacity, lastRefill: now}
		b.buckets[key] = state
	}

	if elapsed := now.Sub(state.lastRefill); elapsed >= b.refill {
		restored := int(elapsed / b.refill)
		state.tokens += restored
		if state.tokens > b.capacity {
			state.tokens = b.capacity
		}
		state.lastRefill = state.lastRefill.Add(time.Duration(restored) * b.refill)
	}

	if state.tokens > 0 {
		state.tokens--
		return true, 0, nil
	}

	retryAfter := state.lastRefill.Add(b.refill).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter, nil
}

// evictIdle drops entries idle long enough to have refilled to capacity,
// which are indistinguishable from entries that never existed. Runs at most
// once per refill interval so the map stays bounded by the active key set.
// Caller holds b.mu.
func (b *TokenBucket) evictIdle(now time.Time) {
	if now.Sub(b.lastSweep) < b.refill {
		return
	}
	b.lastSweep = now

	idle := time.Duration(b.capacity) * b.refill
	for key, state := range b.buckets {
		if now.Sub(state.lastRefill) >= idle {
			delete(b.buckets, key)
		}
	}
}
