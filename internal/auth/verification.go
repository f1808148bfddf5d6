package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
)

// VerificationService manages the single-use tokens behind email
// confirmation and password reset. These are independent of the
// login token pair: shorter-lived, typed, and at most one live token
// per (user, type).
type VerificationService struct {
	store repository.VerificationTokenStore

	emailTTL time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

// NewVerificationService wires the service with the default
// lifetimes: 24 hours for email verification, 1 hour for password
// reset. The reset window is deliberately shorter because a reset
// token is a full account takeover if stolen.
func NewVerificationService(store repository.VerificationTokenStore) *VerificationService {
	return &VerificationService{
		store:    store,
		emailTTL: 24 * time.Hour,
		resetTTL: time.Hour,
		now:      time.Now,
	}
}

func (s *VerificationService) ttlFor(tokenType string) (time.Duration, error) {
	switch tokenType {
	case model.TokenTypeEmailVerification:
		return s.emailTTL, nil
	case model.TokenTypePasswordReset:
		return s.resetTTL, nil
	default:
		return 0, fmt.Errorf("unknown verification token type %q", tokenType)
	}
}

// CreateToken invalidates every prior live token of the same type
// for the user and returns a fresh raw token. Only its hash is
// stored.
func (s *VerificationService) CreateToken(ctx context.Context, userID uint64, tokenType string) (string, error) {
	ttl, err := s.ttlFor(tokenType)
	if err != nil {
		return "", err
	}
	raw, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	rec := &model.VerificationToken{
		UserID:    userID,
		Type:      tokenType,
		TokenHash: HashToken(raw),
		ExpiresAt: s.now().UTC().Add(ttl),
	}
	if err := s.store.CreateInvalidatingPrior(ctx, rec); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return raw, nil
}

// VerifyToken checks a raw token against the expected type and
// returns the owning user id. It does NOT consume the token; callers
// follow up with UseToken before completing their side effect.
func (s *VerificationService) VerifyToken(ctx context.Context, raw, tokenType string) (uint64, error) {
	rec, err := s.store.GetByHash(ctx, HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, &AuthenticationError{Message: "invalid or expired token"}
		}
		return 0, err
	}
	if rec.Type != tokenType {
		return 0, &AuthenticationError{Message: "invalid token type"}
	}
	if rec.UsedAt != nil {
		return 0, &AuthenticationError{Message: "token has already been used"}
	}
	if s.now().UTC().After(rec.ExpiresAt) {
		return 0, &AuthenticationError{Message: "token has expired"}
	}
	return rec.UserID, nil
}

// UseToken consumes the token exactly once. A second consumption
// attempt, concurrent or not, reports already-used.
func (s *VerificationService) UseToken(ctx context.Context, raw string) error {
	err := s.store.MarkUsed(ctx, HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyUsed) {
			return &AuthenticationError{Message: "token has already been used"}
		}
		return err
	}
	return nil
}
