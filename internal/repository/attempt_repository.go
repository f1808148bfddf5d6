package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
)

// LoginAttemptStore records login attempts and answers the aggregate
// question the lockout tracker cares about: how many failures for an
// email within the trailing window.
type LoginAttemptStore interface {
	// Record appends one attempt row.
	Record(ctx context.Context, a *model.LoginAttempt) error
	// RecentFailures counts failed attempts for the email within the
	// last windowSeconds and reports when the oldest of them
	// happened, so callers can tell how long until it ages out. The
	// timestamp is the zero value when the count is zero.
	RecentFailures(ctx context.Context, email string, windowSeconds int) (int, time.Time, error)
	// ClearFailures removes the failure history for an email after a
	// successful login so the lockout counter starts fresh.
	ClearFailures(ctx context.Context, email string) error
}

// AttemptRepo is the MySQL-backed LoginAttemptStore.
type AttemptRepo struct{ DB *sql.DB }

func NewAttemptRepo(db *sql.DB) *AttemptRepo { return &AttemptRepo{DB: db} }

// Record appends one login attempt.
func (r *AttemptRepo) Record(ctx context.Context, a *model.LoginAttempt) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO login_attempts (email, source_addr, success) VALUES (?,?,?)",
		a.Email, a.SourceAddr, a.Success)
	return err
}

// RecentFailures counts failed attempts inside the trailing window
// and returns the timestamp of the oldest one.
func (r *AttemptRepo) RecentFailures(ctx context.Context, email string, windowSeconds int) (int, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		n      int
		oldest sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(created_at) FROM login_attempts WHERE email=? AND success=0 AND created_at > NOW() - INTERVAL ? SECOND",
		email, windowSeconds).Scan(&n, &oldest)
	if err != nil {
		return 0, time.Time{}, err
	}
	if !oldest.Valid {
		return n, time.Time{}, nil
	}
	return n, oldest.Time, nil
}

// ClearFailures deletes the failed-attempt rows for an email.
func (r *AttemptRepo) ClearFailures(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM login_attempts WHERE email=? AND success=0",
		email)
	return err
}

var _ LoginAttemptStore = (*AttemptRepo)(nil)
