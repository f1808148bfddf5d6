package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
)

// Principal is the authenticated identity carried by a verified
// access token.
type Principal struct {
	UserID uint64
	Email  string
	Role   string
}

// TokenPair is one issued access + refresh token set. The refresh
// token is returned raw exactly once; only its SHA-256 hash is
// persisted.
type TokenPair struct {
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// TokenService issues, verifies, rotates and revokes token pairs.
// Access tokens are stateless HS256 JWTs; refresh tokens are random
// 48-byte strings persisted hashed and usable exactly once.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	tokens     repository.RefreshTokenStore
	users      repository.UserStore

	now func() time.Time
}

// NewTokenService wires the service. accessTTL and refreshTTL come
// from config (minutes and days respectively at the config layer).
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, tokens repository.RefreshTokenStore, users repository.UserStore) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		tokens:     tokens,
		users:      users,
		now:        time.Now,
	}
}

// Issue creates and persists a fresh pair for the user.
func (s *TokenService) Issue(ctx context.Context, u *model.User) (TokenPair, error) {
	pair, rec, err := s.newPair(u)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Store(ctx, rec); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

// newPair signs an access token and generates a refresh token without
// touching the store. The jti claim makes every access token unique
// even when two issuances share the same second-resolution iat/exp.
func (s *TokenService) newPair(u *model.User) (TokenPair, *model.RefreshToken, error) {
	now := s.now().UTC()
	accessExp := now.Add(s.accessTTL)

	jti, err := randomHex(16)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("generate token id: %w", err)
	}
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"role":  u.Role,
		"jti":   jti,
		"iat":   now.Unix(),
		"exp":   accessExp.Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("sign access token: %w", err)
	}

	raw, err := randomHex(48)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExp := now.Add(s.refreshTTL)
	rec := &model.RefreshToken{
		UserID:    u.ID,
		TokenHash: HashToken(raw),
		ExpiresAt: refreshExp,
	}

	return TokenPair{
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   raw,
		RefreshExpires: refreshExp,
	}, rec, nil
}

// Verify checks signature and expiry of an access token and returns
// the principal it names. Every failure mode collapses into the same
// generic AuthenticationError so the reply is not an oracle.
func (s *TokenService) Verify(tokenStr string) (*Principal, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken()
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken()
	}

	p := &Principal{}
	switch sub := claims["sub"].(type) {
	case float64:
		p.UserID = uint64(sub)
	default:
		return nil, ErrInvalidToken()
	}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		p.Role = role
	}
	return p, nil
}

// Refresh exchanges a live refresh token for a brand-new pair. The
// new pair is built first and then swapped in with a single Rotate
// call, so the old token is never consumed without its replacement
// being persisted; under concurrent calls with the same token exactly
// one caller wins and the rest get the uniform invalid-refresh-token
// error.
func (s *TokenService) Refresh(ctx context.Context, raw string) (TokenPair, *model.User, error) {
	hash := HashToken(raw)

	rec, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidRefreshToken()
		}
		return TokenPair{}, nil, err
	}
	if !rec.Live(s.now().UTC()) {
		return TokenPair{}, nil, ErrInvalidRefreshToken()
	}

	u, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidRefreshToken()
		}
		return TokenPair{}, nil, err
	}

	pair, newRec, err := s.newPair(u)
	if err != nil {
		return TokenPair{}, nil, err
	}

	// Compare-and-rotate: losing a concurrent race surfaces as
	// ErrAlreadyUsed here.
	if err := s.tokens.Rotate(ctx, hash, newRec); err != nil {
		if errors.Is(err, repository.ErrAlreadyUsed) {
			return TokenPair{}, nil, ErrInvalidRefreshToken()
		}
		return TokenPair{}, nil, err
	}
	return pair, u, nil
}

// RevokeAll invalidates every live refresh token of the user. Used
// at logout and after password reset. Idempotent.
func (s *TokenService) RevokeAll(ctx context.Context, userID uint64) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// HashToken returns the SHA-256 hash of a raw token as a hex string.
// Storing only the hash keeps stolen database rows from being
// replayed as live tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
