package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter() (*Limiter, *MemoryBackend) {
	backend := NewMemoryBackend()
	return New(backend), backend
}

func TestConsumeUntilExhausted(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()
	opts := Options{Points: 2, Duration: time.Minute}

	require.NoError(t, limiter.Consume(ctx, "read", "user:1", opts, 1))
	require.NoError(t, limiter.Consume(ctx, "read", "user:1", opts, 1))

	err := limiter.Consume(ctx, "read", "user:1", opts, 1)
	var rl *Error
	require.ErrorAs(t, err, &rl)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rl.RetryAfter, time.Minute)
}

func TestIdentifiersAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()
	opts := Options{Points: 1, Duration: time.Minute}

	require.NoError(t, limiter.Consume(ctx, "read", "user:1", opts, 1))
	require.Error(t, limiter.Consume(ctx, "read", "user:1", opts, 1))

	// Other identifiers and other keys keep their own buckets.
	require.NoError(t, limiter.Consume(ctx, "read", "user:2", opts, 1))
	require.NoError(t, limiter.Consume(ctx, "write", "user:1", opts, 1))
}

func TestOptionsDoNotAlias(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()

	tight := Options{Points: 1, Duration: time.Minute}
	loose := Options{Points: 10, Duration: time.Minute}

	require.NoError(t, limiter.Consume(ctx, "api", "user:1", tight, 1))
	require.Error(t, limiter.Consume(ctx, "api", "user:1", tight, 1))

	// Same key and identifier, different options: separate bucket.
	require.NoError(t, limiter.Consume(ctx, "api", "user:1", loose, 1))
}

func TestWindowRefill(t *testing.T) {
	limiter, backend := newTestLimiter()
	ctx := context.Background()
	opts := Options{Points: 1, Duration: time.Minute}

	base := time.Now()
	backend.Now = func() time.Time { return base }

	require.NoError(t, limiter.Consume(ctx, "read", "user:1", opts, 1))
	require.Error(t, limiter.Consume(ctx, "read", "user:1", opts, 1))

	backend.Now = func() time.Time { return base.Add(61 * time.Second) }
	require.NoError(t, limiter.Consume(ctx, "read", "user:1", opts, 1))
}

func TestBlockDurationOutlastsWindow(t *testing.T) {
	limiter, backend := newTestLimiter()
	ctx := context.Background()
	opts := Options{Points: 1, Duration: time.Minute, BlockDuration: 10 * time.Minute}

	base := time.Now()
	backend.Now = func() time.Time { return base }

	require.NoError(t, limiter.Consume(ctx, "login", "ip:1.2.3.4", opts, 1))

	err := limiter.Consume(ctx, "login", "ip:1.2.3.4", opts, 1)
	var rl *Error
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 10*time.Minute, rl.RetryAfter)

	// Past the window but inside the block: still refused, and the
	// wait shrinks as time passes.
	backend.Now = func() time.Time { return base.Add(5 * time.Minute) }
	err = limiter.Consume(ctx, "login", "ip:1.2.3.4", opts, 1)
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 5*time.Minute, rl.RetryAfter)

	// Past the block: refilled.
	backend.Now = func() time.Time { return base.Add(10*time.Minute + time.Second) }
	require.NoError(t, limiter.Consume(ctx, "login", "ip:1.2.3.4", opts, 1))
}

func TestCostAboveOneAndClamp(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()
	opts := Options{Points: 5, Duration: time.Minute}

	require.NoError(t, limiter.Consume(ctx, "bulk", "user:1", opts, 3))
	require.Error(t, limiter.Consume(ctx, "bulk", "user:1", opts, 3))
	require.NoError(t, limiter.Consume(ctx, "bulk", "user:1", opts, 2))

	// Non-positive cost counts as one point.
	require.Error(t, limiter.Consume(ctx, "bulk", "user:1", opts, 0))
}

func TestResetReopensBucket(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()
	opts := Options{Points: 1, Duration: time.Hour}

	require.NoError(t, limiter.Consume(ctx, "read", "user:1", opts, 1))
	require.Error(t, limiter.Consume(ctx, "read", "user:1", opts, 1))

	require.NoError(t, limiter.Reset(ctx, "read", "user:1", opts))
	require.NoError(t, limiter.Consume(ctx, "read", "user:1", opts, 1))
}

func TestResetAllReopensEveryBucket(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()
	opts := Options{Points: 1, Duration: time.Hour}

	require.NoError(t, limiter.Consume(ctx, "read", "user:1", opts, 1))
	require.NoError(t, limiter.Consume(ctx, "read", "user:2", opts, 1))
	require.Error(t, limiter.Consume(ctx, "read", "user:1", opts, 1))

	require.NoError(t, limiter.ResetAll(ctx))
	require.NoError(t, limiter.Consume(ctx, "read", "user:1", opts, 1))
	require.NoError(t, limiter.Consume(ctx, "read", "user:2", opts, 1))
}

func TestConcurrentConsumeNeverOversells(t *testing.T) {
	limiter, _ := newTestLimiter()
	ctx := context.Background()
	opts := Options{Points: 10, Duration: time.Minute}

	const workers = 32
	var wg sync.WaitGroup
	allowed := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Consume(ctx, "read", "user:1", opts, 1) == nil {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	n := 0
	for range allowed {
		n++
	}
	assert.Equal(t, opts.Points, n)
}

func TestDefaultPresets(t *testing.T) {
	p := DefaultPresets()

	assert.Equal(t, 5, p.Login.Points)
	assert.Equal(t, 15*time.Minute, p.Login.Duration)
	assert.Equal(t, 15*time.Minute, p.Login.BlockDuration)
	assert.Equal(t, 3, p.Signup.Points)
	assert.Equal(t, time.Hour, p.Signup.Duration)
	assert.Equal(t, 100, p.Read.Points)
	assert.Equal(t, time.Minute, p.Read.Duration)
	assert.Equal(t, 20, p.Write.Points)
}
