package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
)

func newVerificationFixture(t *testing.T) (*VerificationService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewVerificationService(store.VerificationTokens()), store
}

func TestVerificationTokenLifecycle(t *testing.T) {
	svc, _ := newVerificationFixture(t)
	ctx := context.Background()

	raw, err := svc.CreateToken(ctx, 42, model.TokenTypeEmailVerification)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	userID, err := svc.VerifyToken(ctx, raw, model.TokenTypeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), userID)

	// Verify alone does not consume; a second verify still passes.
	_, err = svc.VerifyToken(ctx, raw, model.TokenTypeEmailVerification)
	require.NoError(t, err)

	require.NoError(t, svc.UseToken(ctx, raw))

	_, err = svc.VerifyToken(ctx, raw, model.TokenTypeEmailVerification)
	var authn *AuthenticationError
	require.ErrorAs(t, err, &authn)
	assert.Equal(t, "token has already been used", authn.Message)

	// Consuming twice reports already-used as well.
	err = svc.UseToken(ctx, raw)
	require.ErrorAs(t, err, &authn)
}

func TestVerificationTokenSingleValidity(t *testing.T) {
	svc, _ := newVerificationFixture(t)
	ctx := context.Background()

	first, err := svc.CreateToken(ctx, 7, model.TokenTypeEmailVerification)
	require.NoError(t, err)
	second, err := svc.CreateToken(ctx, 7, model.TokenTypeEmailVerification)
	require.NoError(t, err)

	// The newer token invalidated the older one.
	_, err = svc.VerifyToken(ctx, first, model.TokenTypeEmailVerification)
	var authn *AuthenticationError
	require.ErrorAs(t, err, &authn)

	_, err = svc.VerifyToken(ctx, second, model.TokenTypeEmailVerification)
	require.NoError(t, err)
}

func TestVerificationTokenTypesIndependent(t *testing.T) {
	svc, _ := newVerificationFixture(t)
	ctx := context.Background()

	verify, err := svc.CreateToken(ctx, 7, model.TokenTypeEmailVerification)
	require.NoError(t, err)
	reset, err := svc.CreateToken(ctx, 7, model.TokenTypePasswordReset)
	require.NoError(t, err)

	// Creating a reset token does not touch the verification token.
	_, err = svc.VerifyToken(ctx, verify, model.TokenTypeEmailVerification)
	require.NoError(t, err)

	// But presenting a token under the wrong type is rejected.
	_, err = svc.VerifyToken(ctx, reset, model.TokenTypeEmailVerification)
	var authn *AuthenticationError
	require.ErrorAs(t, err, &authn)
	assert.Equal(t, "invalid token type", authn.Message)
}

func TestVerificationTokenExpiry(t *testing.T) {
	svc, _ := newVerificationFixture(t)
	ctx := context.Background()

	raw, err := svc.CreateToken(ctx, 7, model.TokenTypePasswordReset)
	require.NoError(t, err)

	// Reset tokens live one hour.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.VerifyToken(ctx, raw, model.TokenTypePasswordReset)
	var authn *AuthenticationError
	require.ErrorAs(t, err, &authn)
	assert.Equal(t, "token has expired", authn.Message)
}

func TestVerificationTokenUnknown(t *testing.T) {
	svc, _ := newVerificationFixture(t)

	_, err := svc.VerifyToken(context.Background(), "no-such-token", model.TokenTypeEmailVerification)
	var authn *AuthenticationError
	require.ErrorAs(t, err, &authn)
	assert.Equal(t, "invalid or expired token", authn.Message)
}

func TestVerificationTokenUnknownType(t *testing.T) {
	svc, _ := newVerificationFixture(t)

	_, err := svc.CreateToken(context.Background(), 7, "magic_link")
	require.Error(t, err)
}
