package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/repository"
)

func TestLockoutAfterThreshold(t *testing.T) {
	store := repository.NewMemoryStore()
	tracker := NewLockoutTracker(store, 15*time.Minute, 5)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, tracker.RecordAttempt(ctx, "a@example.com", "10.0.0.1", false))
		require.NoError(t, tracker.CheckLockout(ctx, "a@example.com"))
	}

	require.NoError(t, tracker.RecordAttempt(ctx, "a@example.com", "10.0.0.1", false))
	err := tracker.CheckLockout(ctx, "a@example.com")
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Positive(t, rl.RetryAfter)
}

func TestLockoutIsPerEmail(t *testing.T) {
	store := repository.NewMemoryStore()
	tracker := NewLockoutTracker(store, 15*time.Minute, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, tracker.RecordAttempt(ctx, "locked@example.com", "10.0.0.1", false))
	}

	var rl *RateLimitError
	require.ErrorAs(t, tracker.CheckLockout(ctx, "locked@example.com"), &rl)
	require.NoError(t, tracker.CheckLockout(ctx, "other@example.com"))
}

func TestLockoutClearedAfterSuccess(t *testing.T) {
	store := repository.NewMemoryStore()
	tracker := NewLockoutTracker(store, 15*time.Minute, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, tracker.RecordAttempt(ctx, "a@example.com", "10.0.0.1", false))
	}
	var rl *RateLimitError
	require.ErrorAs(t, tracker.CheckLockout(ctx, "a@example.com"), &rl)

	require.NoError(t, tracker.ClearFailures(ctx, "a@example.com"))
	require.NoError(t, tracker.CheckLockout(ctx, "a@example.com"))
}

func TestLockoutWindowExpires(t *testing.T) {
	store := repository.NewMemoryStore()
	tracker := NewLockoutTracker(store, 15*time.Minute, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, tracker.RecordAttempt(ctx, "a@example.com", "10.0.0.1", false))
	}

	// Move the store clock past the window: old failures age out.
	store.Now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	require.NoError(t, tracker.CheckLockout(ctx, "a@example.com"))
}

func TestLockoutRetryAfterTracksOldestFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	tracker := NewLockoutTracker(store, 15*time.Minute, 5)
	ctx := context.Background()

	// Record every failure at a fixed instant.
	base := time.Now()
	store.Now = func() time.Time { return base }
	for i := 0; i < 5; i++ {
		require.NoError(t, tracker.RecordAttempt(ctx, "a@example.com", "10.0.0.1", false))
	}

	// Checked immediately, the wait is the whole window.
	tracker.now = func() time.Time { return base }
	var rl *RateLimitError
	require.ErrorAs(t, tracker.CheckLockout(ctx, "a@example.com"), &rl)
	assert.Equal(t, 15*60, rl.RetryAfter)

	// Ten minutes in, only the remaining five are left to wait.
	tracker.now = func() time.Time { return base.Add(10 * time.Minute) }
	require.ErrorAs(t, tracker.CheckLockout(ctx, "a@example.com"), &rl)
	assert.Equal(t, 5*60, rl.RetryAfter)
}

func TestAttemptsNormalizeEmail(t *testing.T) {
	store := repository.NewMemoryStore()
	tracker := NewLockoutTracker(store, 15*time.Minute, 2)
	ctx := context.Background()

	require.NoError(t, tracker.RecordAttempt(ctx, "A@Example.com", "10.0.0.1", false))
	require.NoError(t, tracker.RecordAttempt(ctx, "a@example.COM", "10.0.0.1", false))

	var rl *RateLimitError
	require.ErrorAs(t, tracker.CheckLockout(ctx, "a@example.com"), &rl)
}
