package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/auth-service/internal/model"
)

// VerificationTokenStore persists email-verification and
// password-reset tokens. Creation and invalidation of prior tokens
// for the same (user, type) happen inside one transaction so that at
// most one live token per pair exists.
type VerificationTokenStore interface {
	// CreateInvalidatingPrior marks every unused token of the same
	// (user, type) as used and inserts the new row, atomically.
	CreateInvalidatingPrior(ctx context.Context, t *model.VerificationToken) error
	// GetByHash returns the token row for an exact hash match, or
	// ErrNotFound.
	GetByHash(ctx context.Context, tokenHash string) (*model.VerificationToken, error)
	// MarkUsed sets used_at, conditional on the token being unused.
	// Returns ErrAlreadyUsed when another caller consumed it first.
	MarkUsed(ctx context.Context, tokenHash string) error
}

// VerificationRepo is the MySQL-backed VerificationTokenStore.
type VerificationRepo struct{ DB *sql.DB }

func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{DB: db} }

// CreateInvalidatingPrior runs invalidate-then-insert inside a single
// transaction.
func (r *VerificationRepo) CreateInvalidatingPrior(ctx context.Context, t *model.VerificationToken) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"UPDATE verification_tokens SET used_at=NOW() WHERE user_id=? AND type=? AND used_at IS NULL",
		t.UserID, t.Type); err != nil {
		return fmt.Errorf("invalidate prior tokens: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO verification_tokens (user_id, type, token_hash, expires_at) VALUES (?,?,?,?)",
		t.UserID, t.Type, t.TokenHash, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return tx.Commit()
}

// GetByHash fetches a verification token row by hash.
func (r *VerificationRepo) GetByHash(ctx context.Context, tokenHash string) (*model.VerificationToken, error) {
	var (
		t    model.VerificationToken
		used sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,type,token_hash,expires_at,used_at,created_at FROM verification_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.Type, &t.TokenHash, &t.ExpiresAt, &used, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if used.Valid {
		v := used.Time
		t.UsedAt = &v
	}
	return &t, nil
}

// MarkUsed consumes the token exactly once.
func (r *VerificationRepo) MarkUsed(ctx context.Context, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE verification_tokens SET used_at=NOW() WHERE token_hash=? AND used_at IS NULL",
		tokenHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyUsed
	}
	return nil
}

var _ VerificationTokenStore = (*VerificationRepo)(nil)
