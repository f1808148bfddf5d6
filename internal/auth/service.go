package auth

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/ratelimit"
	"github.com/iliyamo/auth-service/internal/repository"
)

// EventPublisher forwards security events to the broker. Publishing
// is best-effort; the service logs failures and never fails the
// request over them.
type EventPublisher interface {
	PublishSecurityEvent(ctx context.Context, ev queue.SecurityEvent) error
}

// Service is the facade the transport layer calls. It owns the one
// unified login flow: lockout check, then rate limit, then password
// verification with transparent rehash, then token pair issuance.
type Service struct {
	users        repository.UserStore
	hasher       *Hasher
	tokens       *TokenService
	verification *VerificationService
	lockout      *LockoutTracker
	limiter      *ratelimit.Limiter
	presets      ratelimit.Presets
	events       EventPublisher

	now func() time.Time
}

// NewService wires the facade. events may be nil when no broker is
// configured.
func NewService(
	users repository.UserStore,
	hasher *Hasher,
	tokens *TokenService,
	verification *VerificationService,
	lockout *LockoutTracker,
	limiter *ratelimit.Limiter,
	presets ratelimit.Presets,
	events EventPublisher,
) *Service {
	return &Service{
		users:        users,
		hasher:       hasher,
		tokens:       tokens,
		verification: verification,
		lockout:      lockout,
		limiter:      limiter,
		presets:      presets,
		events:       events,
		now:          time.Now,
	}
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Signup registers a new account and logs it straight in, returning
// a token pair. Duplicate emails come back as *ConflictError.
func (s *Service) Signup(ctx context.Context, email, password, name, sourceAddr string) (*model.User, TokenPair, error) {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, TokenPair{}, fieldError("email", "invalid email address")
	}

	if err := s.limiter.Consume(ctx, "signup", email, s.presets.Signup, 1); err != nil {
		return nil, TokenPair{}, translateRateLimit(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, TokenPair{}, err
	}

	u := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Status:       model.StatusActive,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, TokenPair{}, &ConflictError{Message: "email is already registered"}
		}
		return nil, TokenPair{}, err
	}

	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.publish(ctx, queue.EventSignup, u.ID, email, sourceAddr)
	return u, pair, nil
}

// Login verifies credentials and issues a token pair. The lockout
// check runs first and independently of the generic rate limiter, so
// a locked account is refused even with the correct password.
func (s *Service) Login(ctx context.Context, email, password, sourceAddr string) (*model.User, TokenPair, error) {
	email = NormalizeEmail(email)

	if err := s.lockout.CheckLockout(ctx, email); err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			s.publish(ctx, queue.EventAccountLocked, 0, email, sourceAddr)
		}
		return nil, TokenPair{}, err
	}
	if err := s.limiter.Consume(ctx, "login", email, s.presets.Login, 1); err != nil {
		return nil, TokenPair{}, translateRateLimit(err)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordFailure(ctx, email, sourceAddr)
			return nil, TokenPair{}, ErrInvalidCredentials()
		}
		return nil, TokenPair{}, err
	}
	if u.Status != model.StatusActive {
		s.recordFailure(ctx, email, sourceAddr)
		return nil, TokenPair{}, &AuthorizationError{Message: "account is disabled"}
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.recordFailure(ctx, email, sourceAddr)
		return nil, TokenPair{}, ErrInvalidCredentials()
	}

	// The plaintext just verified, so upgrade stale-cost hashes in
	// place. Failure to persist the upgrade must not fail the login.
	if s.hasher.NeedsRehash(u.PasswordHash) {
		if newHash, err := s.hasher.Hash(password); err == nil {
			if err := s.users.UpdatePasswordHash(ctx, u.ID, newHash); err != nil {
				log.Printf("auth: rehash persist failed for user %d: %v", u.ID, err)
			} else {
				u.PasswordHash = newHash
			}
		}
	}

	if err := s.lockout.RecordAttempt(ctx, email, sourceAddr, true); err != nil {
		log.Printf("auth: record login attempt failed: %v", err)
	}
	if err := s.lockout.ClearFailures(ctx, email); err != nil {
		log.Printf("auth: clear failed attempts failed: %v", err)
	}

	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.publish(ctx, queue.EventLoginSucceeded, u.ID, email, sourceAddr)
	return u, pair, nil
}

// RefreshTokens rotates a refresh token into a new pair.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*model.User, TokenPair, error) {
	pair, u, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout revokes every live refresh token of the user. Idempotent.
func (s *Service) Logout(ctx context.Context, userID uint64) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, queue.EventLogout, userID, "", "")
	return nil
}

// VerifyAccessToken resolves a bearer token into a principal.
func (s *Service) VerifyAccessToken(token string) (*Principal, error) {
	return s.tokens.Verify(token)
}

// RequestEmailVerification creates a fresh email-verification token
// for the user, invalidating any prior one. The raw token is
// returned for delivery; mail transport is out of scope here.
func (s *Service) RequestEmailVerification(ctx context.Context, userID uint64) (string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", &NotFoundError{Message: "account not found"}
		}
		return "", err
	}
	return s.verification.CreateToken(ctx, u.ID, model.TokenTypeEmailVerification)
}

// ConfirmEmail consumes an email-verification token and stamps the
// account verified. Verify and use run back to back so the token
// cannot be acted upon twice.
func (s *Service) ConfirmEmail(ctx context.Context, rawToken string) error {
	userID, err := s.verification.VerifyToken(ctx, rawToken, model.TokenTypeEmailVerification)
	if err != nil {
		return err
	}
	if err := s.verification.UseToken(ctx, rawToken); err != nil {
		return err
	}
	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, queue.EventEmailVerified, userID, "", "")
	return nil
}

// RequestPasswordReset creates a reset token for the email's
// account. Unknown emails succeed silently so the endpoint cannot be
// used to enumerate accounts; the returned token is empty in that
// case.
func (s *Service) RequestPasswordReset(ctx context.Context, email, sourceAddr string) (string, error) {
	email = NormalizeEmail(email)
	if err := s.limiter.Consume(ctx, "password_reset", email, s.presets.Signup, 1); err != nil {
		return "", translateRateLimit(err)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	raw, err := s.verification.CreateToken(ctx, u.ID, model.TokenTypePasswordReset)
	if err != nil {
		return "", err
	}
	s.publish(ctx, queue.EventPasswordResetRequested, u.ID, email, sourceAddr)
	return raw, nil
}

// ResetPassword consumes a reset token, installs the new password
// and revokes every refresh token of the account so stolen sessions
// die with the old password.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	userID, err := s.verification.VerifyToken(ctx, rawToken, model.TokenTypePasswordReset)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.verification.UseToken(ctx, rawToken); err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, queue.EventPasswordResetCompleted, userID, "", "")
	return nil
}

// Consume exposes ad-hoc throttling to callers that need it beyond
// the presets.
func (s *Service) Consume(ctx context.Context, key, identifier string, opts ratelimit.Options, points int) error {
	return translateRateLimit(s.limiter.Consume(ctx, key, identifier, opts, points))
}

func (s *Service) recordFailure(ctx context.Context, email, sourceAddr string) {
	if err := s.lockout.RecordAttempt(ctx, email, sourceAddr, false); err != nil {
		log.Printf("auth: record login attempt failed: %v", err)
	}
	s.publish(ctx, queue.EventLoginFailed, 0, email, sourceAddr)
}

func (s *Service) publish(ctx context.Context, eventType string, userID uint64, email, sourceAddr string) {
	if s.events == nil {
		return
	}
	ev := queue.SecurityEvent{
		Type:       eventType,
		UserID:     userID,
		Email:      email,
		SourceAddr: sourceAddr,
		OccurredAt: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishSecurityEvent(ctx, ev); err != nil {
		log.Printf("auth: publish %s event failed: %v", eventType, err)
	}
}

// translateRateLimit converts the limiter's error into the domain
// RateLimitError with a generic message.
func translateRateLimit(err error) error {
	if err == nil {
		return nil
	}
	var rl *ratelimit.Error
	if errors.As(err, &rl) {
		secs := int(rl.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		return &RateLimitError{Message: "too many requests, try again later", RetryAfter: secs}
	}
	return err
}
