package auth

import (
	"context"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
)

// LockoutTracker turns the append-only login attempt log into a
// temporary account lockout: once an email accumulates Threshold
// failures inside the trailing Window, further login attempts are
// refused before the password is even checked. A correct password
// does not bypass an active lockout.
type LockoutTracker struct {
	attempts  repository.LoginAttemptStore
	window    time.Duration
	threshold int

	now func() time.Time
}

// NewLockoutTracker wires the tracker. Non-positive arguments fall
// back to 15 minutes / 5 failures.
func NewLockoutTracker(attempts repository.LoginAttemptStore, window time.Duration, threshold int) *LockoutTracker {
	if window <= 0 {
		window = 15 * time.Minute
	}
	if threshold <= 0 {
		threshold = 5
	}
	return &LockoutTracker{attempts: attempts, window: window, threshold: threshold, now: time.Now}
}

// RecordAttempt appends one attempt row. A brief race around the
// threshold transition is tolerated; the check is not linearizable
// with the recording.
func (t *LockoutTracker) RecordAttempt(ctx context.Context, email, sourceAddr string, success bool) error {
	return t.attempts.Record(ctx, &model.LoginAttempt{
		Email:      NormalizeEmail(email),
		SourceAddr: sourceAddr,
		Success:    success,
	})
}

// ClearFailures wipes the failure history after a successful login.
func (t *LockoutTracker) ClearFailures(ctx context.Context, email string) error {
	return t.attempts.ClearFailures(ctx, NormalizeEmail(email))
}

// CheckLockout fails when the email has reached the failure
// threshold inside the window. The message stays generic so the
// reply does not confirm whether the account exists. RetryAfter is
// the time until the oldest in-window failure ages out, which is when
// the count next drops below the threshold.
func (t *LockoutTracker) CheckLockout(ctx context.Context, email string) error {
	n, oldest, err := t.attempts.RecentFailures(ctx, NormalizeEmail(email), int(t.window.Seconds()))
	if err != nil {
		return err
	}
	if n >= t.threshold {
		retry := t.window
		if !oldest.IsZero() {
			retry = oldest.Add(t.window).Sub(t.now())
		}
		secs := int(retry.Seconds())
		if secs < 1 {
			secs = 1
		}
		return &RateLimitError{
			Message:    "too many failed login attempts, try again later",
			RetryAfter: secs,
		}
	}
	return nil
}
