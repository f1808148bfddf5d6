package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/auth-service/internal/model"
)

// UserStore abstracts user record access so that the auth core never
// touches SQL directly. The MySQL implementation lives below; an
// in-memory implementation for tests lives in memory.go.
type UserStore interface {
	// Create inserts the user and populates its ID. Returns
	// ErrEmailExists when the normalized email is already taken.
	Create(ctx context.Context, u *model.User) error
	// GetByEmail fetches a user by normalized email. Returns
	// ErrNotFound when no account exists.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByID fetches a user by primary key. Returns ErrNotFound
	// when no account exists.
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
	// MarkEmailVerified stamps email_verified_at for the user.
	MarkEmailVerified(ctx context.Context, id uint64) error
}

// UserRepo is the MySQL-backed UserStore.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const mysqlDuplicateEntry = 1062

// Create inserts a user row and populates u.ID.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, name, password_hash, role, status) VALUES (?,?,?,?,?)",
		u.Email, u.Name, u.PasswordHash, u.Role, u.Status)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(ctx,
		"SELECT id,email,name,password_hash,role,status,email_verified_at,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.scanOne(ctx,
		"SELECT id,email,name,password_hash,role,status,email_verified_at,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id)
}

func (r *UserRepo) scanOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var (
		u        model.User
		verified sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Status,
		&verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if verified.Valid {
		t := verified.Time
		u.EmailVerifiedAt = &t
	}
	return &u, nil
}

// UpdatePasswordHash replaces the password hash for a user. Used by
// the transparent rehash-on-login upgrade and by password reset.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=NOW() WHERE id=?",
		hash, id)
	return err
}

// MarkEmailVerified stamps email_verified_at once.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified_at=NOW(), updated_at=NOW() WHERE id=? AND email_verified_at IS NULL",
		id)
	return err
}

var _ UserStore = (*UserRepo)(nil)
