package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/auth-service/internal/model"
)

// RefreshTokenStore persists refresh tokens. Only the SHA-256 hash of
// a token ever reaches this layer.
type RefreshTokenStore interface {
	// Store inserts a refresh token row.
	Store(ctx context.Context, t *model.RefreshToken) error
	// GetByHash returns the token row for an exact hash match, or
	// ErrNotFound.
	GetByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// Rotate sets used_at on the old token and inserts its
	// replacement atomically. The update is conditional on the old
	// token being live; ErrAlreadyUsed means another caller won the
	// rotation and no replacement was written.
	Rotate(ctx context.Context, oldHash string, replacement *model.RefreshToken) error
	// RevokeAllForUser revokes every live token of the user.
	// Idempotent.
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// TokenRepo is the MySQL-backed RefreshTokenStore.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token hash row.
func (r *TokenRepo) Store(ctx context.Context, t *model.RefreshToken) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		t.UserID, t.TokenHash, t.ExpiresAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByHash returns the token row regardless of its state; callers
// decide how stale state maps onto their error vocabulary.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var (
		t       model.RefreshToken
		used    sql.NullTime
		revoked sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token_hash,expires_at,used_at,revoked_at,created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &used, &revoked, &t.CreatedAt)
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
	if revoked.Valid {
		v := revoked.Time
		t.RevokedAt = &v
	}
	return &t, nil
}

// Rotate performs the compare-and-rotate step inside one
// transaction. The UPDATE is conditional on used_at and revoked_at
// still being NULL, so under concurrent refresh attempts with the
// same token exactly one caller observes an affected row; that caller
// also inserts the replacement before committing, so the old token is
// never consumed without a replacement on record.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, replacement *model.RefreshToken) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET used_at=NOW() WHERE token_hash=? AND used_at IS NULL AND revoked_at IS NULL",
		oldHash)
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

	ins, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		replacement.UserID, replacement.TokenHash, replacement.ExpiresAt)
	if err != nil {
		return err
	}
	id, err := ins.LastInsertId()
	if err != nil {
		return err
	}
	replacement.ID = uint64(id)
	return tx.Commit()
}

// RevokeAllForUser revokes all of the user's live tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND used_at IS NULL AND revoked_at IS NULL",
		userID)
	return err
}

var _ RefreshTokenStore = (*TokenRepo)(nil)
