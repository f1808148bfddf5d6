package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/auth"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/ratelimit"
	"github.com/iliyamo/auth-service/internal/repository"
)

func newTestEngine() (*Engine, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	limiter := ratelimit.New(ratelimit.NewMemoryBackend())
	return NewEngine(store, limiter, DefaultRolePermissions()), store
}

func principal(id uint64, role string) *auth.Principal {
	return &auth.Principal{UserID: id, Email: "p@example.com", Role: role}
}

func uintPtr(v uint64) *uint64 { return &v }

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleAtLeast(model.RoleAdmin, model.RoleUser))
	assert.True(t, RoleAtLeast(model.RoleAdmin, model.RoleAdmin))
	assert.True(t, RoleAtLeast(model.RoleModerator, model.RoleUser))
	assert.False(t, RoleAtLeast(model.RoleUser, model.RoleModerator))
	assert.False(t, RoleAtLeast(model.RoleUser, model.RoleAdmin))

	// Unknown roles rank below everything, on both sides.
	assert.False(t, RoleAtLeast("INTERN", model.RoleUser))
	assert.False(t, RoleAtLeast(model.RoleAdmin, "SUPERADMIN"))
}

func TestIsAuthenticated(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleUser), IsAuthenticated()))

	err := engine.Authorize(ctx, nil, IsAuthenticated())
	var authn *auth.AuthenticationError
	require.ErrorAs(t, err, &authn)
}

func TestHasRoleExactAndHierarchy(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	var authz *auth.AuthorizationError

	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleModerator), HasRole(model.RoleModerator)))
	// HasRole is exact: admin does not satisfy a moderator check.
	err := engine.Authorize(ctx, principal(1, model.RoleAdmin), HasRole(model.RoleModerator))
	require.ErrorAs(t, err, &authz)

	// HasRoleOrHigher walks the hierarchy.
	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleAdmin), HasRoleOrHigher(model.RoleModerator)))
	err = engine.Authorize(ctx, principal(1, model.RoleUser), HasRoleOrHigher(model.RoleModerator))
	require.ErrorAs(t, err, &authz)
}

func TestPermissionRules(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	var authz *auth.AuthorizationError

	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleUser), engine.HasPermission("post:create")))
	err := engine.Authorize(ctx, principal(1, model.RoleUser), engine.HasPermission("post:delete:any"))
	require.ErrorAs(t, err, &authz)

	// The wildcard grants admins permissions never listed explicitly.
	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleAdmin), engine.HasPermission("billing:export")))

	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleModerator),
		engine.HasAnyPermission("billing:export", "user:suspend")))
	err = engine.Authorize(ctx, principal(1, model.RoleUser),
		engine.HasAnyPermission("billing:export", "user:suspend"))
	require.ErrorAs(t, err, &authz)

	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleModerator),
		engine.HasAllPermissions("post:read", "user:suspend")))
	err = engine.Authorize(ctx, principal(1, model.RoleModerator),
		engine.HasAllPermissions("post:read", "billing:export"))
	require.ErrorAs(t, err, &authz)
}

func TestIsOwner(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()
	store.PutResource("post", 10, uintPtr(1), false)
	store.PutResource("post", 11, nil, true)

	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleUser), engine.IsOwner("post", 10)))

	var authz *auth.AuthorizationError
	err := engine.Authorize(ctx, principal(2, model.RoleUser), engine.IsOwner("post", 10))
	require.ErrorAs(t, err, &authz)

	// Ownerless resources deny every principal.
	err = engine.Authorize(ctx, principal(1, model.RoleUser), engine.IsOwner("post", 11))
	require.ErrorAs(t, err, &authz)

	// A missing resource is not-found, not forbidden.
	var nf *auth.NotFoundError
	err = engine.Authorize(ctx, principal(1, model.RoleUser), engine.IsOwner("post", 99))
	require.ErrorAs(t, err, &nf)
}

func TestPublicVisibility(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()
	store.PutResource("post", 10, uintPtr(1), true)
	store.PutResource("post", 11, uintPtr(1), false)

	// Public resources are readable anonymously.
	require.NoError(t, engine.Authorize(ctx, nil, engine.CanAccessIfPublic("post", 10)))

	// A private resource reports absence, same as a missing one.
	var nf *auth.NotFoundError
	err := engine.Authorize(ctx, nil, engine.CanAccessIfPublic("post", 11))
	require.ErrorAs(t, err, &nf)
	err = engine.Authorize(ctx, nil, engine.CanAccessIfPublic("post", 99))
	require.ErrorAs(t, err, &nf)
}

func TestCanAccessIfOwnerOrPublic(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()
	store.PutResource("post", 10, uintPtr(1), false)

	// Owner reads private; a stranger sees not-found, because the
	// public branch's verdict wins over the ownership deny.
	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleUser),
		engine.CanAccessIfOwnerOrPublic("post", 10)))

	var nf *auth.NotFoundError
	err := engine.Authorize(ctx, principal(2, model.RoleUser),
		engine.CanAccessIfOwnerOrPublic("post", 10))
	require.ErrorAs(t, err, &nf)

	// Admin reads anything that exists.
	require.NoError(t, engine.Authorize(ctx, principal(3, model.RoleAdmin),
		engine.CanAccessIfOwnerOrPublic("post", 10)))

	// Entirely missing stays not-found for ordinary principals.
	err = engine.Authorize(ctx, principal(2, model.RoleUser),
		engine.CanAccessIfOwnerOrPublic("post", 99))
	require.ErrorAs(t, err, &nf)
}

func TestCombinators(t *testing.T) {
	ctx := context.Background()
	allow := func(context.Context, *auth.Principal) error { return nil }
	deny := func(context.Context, *auth.Principal) error {
		return &auth.AuthorizationError{Message: "denied"}
	}

	var authz *auth.AuthorizationError

	require.NoError(t, And(allow, allow)(ctx, nil))
	require.ErrorAs(t, And(allow, deny)(ctx, nil), &authz)

	require.NoError(t, Or(deny, allow)(ctx, nil))
	require.ErrorAs(t, Or(deny, deny)(ctx, nil), &authz)
	// Empty Or denies rather than allowing by accident.
	require.ErrorAs(t, Or()(ctx, nil), &authz)

	require.NoError(t, Not(deny, "must not hold")(ctx, nil))
	require.ErrorAs(t, Not(allow, "must not hold")(ctx, nil), &authz)
	assert.Equal(t, "must not hold", Not(allow, "must not hold")(ctx, nil).Error())
}

func TestCombinatorsPropagateFaults(t *testing.T) {
	ctx := context.Background()
	deny := func(context.Context, *auth.Principal) error {
		return &auth.AuthorizationError{Message: "denied"}
	}
	faultErr := errors.New("store unreachable")
	fault := func(context.Context, *auth.Principal) error { return faultErr }

	// Faults are never treated as denies.
	assert.ErrorIs(t, And(fault, deny)(ctx, nil), faultErr)
	assert.ErrorIs(t, Or(deny, fault)(ctx, nil), faultErr)
	assert.ErrorIs(t, Not(fault, "x")(ctx, nil), faultErr)
}

func TestOrReturnsFirstDeny(t *testing.T) {
	ctx := context.Background()
	nfDeny := func(context.Context, *auth.Principal) error {
		return &auth.NotFoundError{Message: "post not found"}
	}
	forbidden := func(context.Context, *auth.Principal) error {
		return &auth.AuthorizationError{Message: "denied"}
	}

	var nf *auth.NotFoundError
	require.ErrorAs(t, Or(nfDeny, forbidden)(ctx, nil), &nf)
}

func TestWithinTimeLimit(t *testing.T) {
	ctx := context.Background()

	// Window still open.
	require.NoError(t, WithinTimeLimit(time.Now(), time.Hour)(ctx, nil))
	require.NoError(t, WithinTimeLimit(time.Now().Add(-30*time.Minute), time.Hour)(ctx, principal(1, model.RoleUser)))

	// Window closed.
	var authz *auth.AuthorizationError
	err := WithinTimeLimit(time.Now().Add(-2*time.Hour), time.Hour)(ctx, principal(1, model.RoleUser))
	require.ErrorAs(t, err, &authz)

	// Composes like any other rule: the closed window denies the
	// whole conjunction.
	err = And(IsAuthenticated(), WithinTimeLimit(time.Now().Add(-2*time.Hour), time.Hour))(ctx, principal(1, model.RoleUser))
	require.ErrorAs(t, err, &authz)
}

func TestWithinRateLimit(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	opts := ratelimit.Options{Points: 1, Duration: time.Minute}

	rule := engine.WithinRateLimit("search", opts, "ip:1.2.3.4")

	// Authenticated principals spend their own bucket.
	require.NoError(t, engine.Authorize(ctx, principal(1, model.RoleUser), rule))
	var rl *auth.RateLimitError
	err := engine.Authorize(ctx, principal(1, model.RoleUser), rule)
	require.ErrorAs(t, err, &rl)
	assert.Positive(t, rl.RetryAfter)

	// Anonymous callers share the fallback identifier, independent of
	// user buckets.
	require.NoError(t, engine.Authorize(ctx, nil, rule))
	err = engine.Authorize(ctx, nil, rule)
	require.ErrorAs(t, err, &rl)
}
