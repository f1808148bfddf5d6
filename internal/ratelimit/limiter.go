// Package ratelimit implements a point-bucket rate limiter: each
// (key, identifier) pair owns a bucket of points replenished every
// fixed window, with an optional extended block once the bucket is
// exhausted. Backends are pluggable; the in-memory backend serves a
// single process and the Redis backend shares buckets across
// instances. Behavior is identical either way.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Options describes one bucket class. Buckets are tracked per
// composite key, so the same key used with different Options does
// not alias.
type Options struct {
	// Points is the bucket capacity per window.
	Points int
	// Duration is the window after which the bucket refills.
	Duration time.Duration
	// BlockDuration, when positive, blocks the identifier for this
	// long once the bucket is exhausted, instead of merely waiting
	// out the window.
	BlockDuration time.Duration
}

// Error is returned when a consume attempt is rejected. RetryAfter
// tells the caller how long to wait before the next point becomes
// available; no component ever sleeps on its own.
type Error struct {
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

// Backend is the bucket storage. Consume must be atomic per bucket
// key: concurrent consumers must never both pass on the last point.
type Backend interface {
	// Consume takes cost points from the bucket. It returns the
	// remaining points and, when rejected, the wait duration.
	Consume(ctx context.Context, bucketKey string, opts Options, cost int) (remaining int, retryAfter time.Duration, allowed bool, err error)
	// Reset clears a single bucket.
	Reset(ctx context.Context, bucketKey string) error
	// ResetAll clears every bucket. Test and ops utility only.
	ResetAll(ctx context.Context) error
}

// Limiter is the service facade callers consume. Construct it once
// and inject it; there is no package-level singleton.
type Limiter struct {
	backend Backend
}

func New(backend Backend) *Limiter { return &Limiter{backend: backend} }

// bucketKey folds the option values into the key so that the same
// logical key with different option sets tracks independently.
func bucketKey(key, identifier string, opts Options) string {
	return fmt.Sprintf("%s:%d:%d:%d:%s",
		key, opts.Points, int(opts.Duration.Seconds()), int(opts.BlockDuration.Seconds()), identifier)
}

// Consume takes cost points from the bucket for (key, identifier).
// It returns *Error with RetryAfter set when the bucket has too few
// points. Backend faults propagate as-is.
func (l *Limiter) Consume(ctx context.Context, key, identifier string, opts Options, cost int) error {
	if cost <= 0 {
		cost = 1
	}
	_, retryAfter, allowed, err := l.backend.Consume(ctx, bucketKey(key, identifier, opts), opts, cost)
	if err != nil {
		return err
	}
	if !allowed {
		return &Error{RetryAfter: retryAfter}
	}
	return nil
}

// Reset clears the bucket for (key, identifier) under the given
// options.
func (l *Limiter) Reset(ctx context.Context, key, identifier string, opts Options) error {
	return l.backend.Reset(ctx, bucketKey(key, identifier, opts))
}

// ResetAll clears every bucket in the backend.
func (l *Limiter) ResetAll(ctx context.Context) error {
	return l.backend.ResetAll(ctx)
}
