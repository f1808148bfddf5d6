package ratelimit

import (
	"context"
	"sync"
	"time"
)

// bucket holds the mutable state of one (key, identifier) pair.
type bucket struct {
	remaining    int
	resetAt      time.Time
	blockedUntil time.Time
}

// MemoryBackend keeps buckets in a mutex-guarded map. Suitable for a
// single process; use the Redis backend when several instances must
// share limits.
type MemoryBackend struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	// Now is the clock; tests override it to move time.
	Now func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		buckets: map[string]*bucket{},
		Now:     time.Now,
	}
}

// Consume implements Backend. The whole read-refill-decrement step
// runs under the lock, so two concurrent consumers can never both
// take the last point.
func (m *MemoryBackend) Consume(_ context.Context, key string, opts Options, cost int) (int, time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{remaining: opts.Points, resetAt: now.Add(opts.Duration)}
		m.buckets[key] = b
	}

	if now.Before(b.blockedUntil) {
		return b.remaining, b.blockedUntil.Sub(now), false, nil
	}
	if !now.Before(b.resetAt) {
		b.remaining = opts.Points
		b.resetAt = now.Add(opts.Duration)
		b.blockedUntil = time.Time{}
	}

	if b.remaining < cost {
		retry := b.resetAt.Sub(now)
		if opts.BlockDuration > 0 {
			b.blockedUntil = now.Add(opts.BlockDuration)
			retry = opts.BlockDuration
		}
		return b.remaining, retry, false, nil
	}

	b.remaining -= cost
	return b.remaining, 0, true, nil
}

// Reset drops a single bucket.
func (m *MemoryBackend) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, key)
	return nil
}

// ResetAll drops every bucket.
func (m *MemoryBackend) ResetAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = map[string]*bucket{}
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
