// Package authz evaluates whether a principal may act on a resource.
// Rules are plain composable predicates over (principal, resource);
// no middleware or schema reflection is involved, so the engine
// works the same behind REST, RPC or anything else.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/auth-service/internal/auth"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/ratelimit"
	"github.com/iliyamo/auth-service/internal/repository"
)

// Rule is one authorization predicate. nil means allow; a deny comes
// back as one of the auth error types, and anything else is an
// unexpected fault that combinators must not swallow.
type Rule func(ctx context.Context, p *auth.Principal) error

// Engine resolves ownership through the resource store and owns the
// role→permission table. Construct once, inject everywhere.
type Engine struct {
	resources repository.ResourceStore
	limiter   *ratelimit.Limiter
	perms     map[string]map[string]bool
}

// NewEngine builds an engine from a role→permission-set table such
// as DefaultRolePermissions(). limiter may be nil when no rate
// combinator is used.
func NewEngine(resources repository.ResourceStore, limiter *ratelimit.Limiter, rolePermissions map[string][]string) *Engine {
	perms := make(map[string]map[string]bool, len(rolePermissions))
	for role, list := range rolePermissions {
		set := make(map[string]bool, len(list))
		for _, p := range list {
			set[p] = true
		}
		perms[role] = set
	}
	return &Engine{resources: resources, limiter: limiter, perms: perms}
}

// Authorize evaluates the rule for the principal (which may be nil
// for anonymous callers) and returns the rule's verdict.
func (e *Engine) Authorize(ctx context.Context, p *auth.Principal, rule Rule) error {
	return rule(ctx, p)
}

// isDeny reports whether the error is a policy deny, as opposed to
// an unexpected fault such as an unreachable store.
func isDeny(err error) bool {
	var (
		authn *auth.AuthenticationError
		authz *auth.AuthorizationError
		nf    *auth.NotFoundError
		rl    *auth.RateLimitError
		rle   *ratelimit.Error
	)
	return errors.As(err, &authn) || errors.As(err, &authz) ||
		errors.As(err, &nf) || errors.As(err, &rl) || errors.As(err, &rle)
}

// And succeeds when every rule succeeds, short-circuiting on the
// first failure. Errors propagate unchanged.
func And(rules ...Rule) Rule {
	return func(ctx context.Context, p *auth.Principal) error {
		for _, r := range rules {
			if err := r(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}
}

// Or succeeds when any rule succeeds, short-circuiting on the first
// allow. A deny moves on to the next branch; an unexpected fault
// aborts immediately. When all branches deny, the first deny is
// returned, which keeps not-found verdicts from being overwritten by
// later forbidden ones.
func Or(rules ...Rule) Rule {
	return func(ctx context.Context, p *auth.Principal) error {
		var firstDeny error
		for _, r := range rules {
			err := r(ctx, p)
			if err == nil {
				return nil
			}
			if !isDeny(err) {
				return err
			}
			if firstDeny == nil {
				firstDeny = err
			}
		}
		if firstDeny == nil {
			firstDeny = &auth.AuthorizationError{Message: "not authorized"}
		}
		return firstDeny
	}
}

// Not inverts a rule: a deny becomes allow and an allow becomes the
// given deny. Unexpected faults still propagate.
func Not(rule Rule, denyMessage string) Rule {
	return func(ctx context.Context, p *auth.Principal) error {
		err := rule(ctx, p)
		if err == nil {
			return &auth.AuthorizationError{Message: denyMessage}
		}
		if isDeny(err) {
			return nil
		}
		return err
	}
}

// IsAuthenticated requires a principal to be present.
func IsAuthenticated() Rule {
	return func(_ context.Context, p *auth.Principal) error {
		if p == nil {
			return &auth.AuthenticationError{Message: "authentication required"}
		}
		return nil
	}
}

// HasRole requires the exact role.
func HasRole(role string) Rule {
	return func(_ context.Context, p *auth.Principal) error {
		if p == nil {
			return &auth.AuthenticationError{Message: "authentication required"}
		}
		if p.Role != role {
			return &auth.AuthorizationError{Message: fmt.Sprintf("requires role %s", role)}
		}
		return nil
	}
}

// HasRoleOrHigher requires the role or any more privileged one in
// the USER < MODERATOR < ADMIN order.
func HasRoleOrHigher(role string) Rule {
	return func(_ context.Context, p *auth.Principal) error {
		if p == nil {
			return &auth.AuthenticationError{Message: "authentication required"}
		}
		if !RoleAtLeast(p.Role, role) {
			return &auth.AuthorizationError{Message: fmt.Sprintf("requires role %s or higher", role)}
		}
		return nil
	}
}

// hasPermission is the boolean core behind the permission rules: it
// returns false rather than erroring, reserving errors for rules.
func (e *Engine) hasPermission(role, permission string) bool {
	set, ok := e.perms[role]
	if !ok {
		return false
	}
	return set[Wildcard] || set[permission]
}

// HasPermission requires a single permission (or the wildcard).
func (e *Engine) HasPermission(permission string) Rule {
	return func(_ context.Context, p *auth.Principal) error {
		if p == nil {
			return &auth.AuthenticationError{Message: "authentication required"}
		}
		if !e.hasPermission(p.Role, permission) {
			return &auth.AuthorizationError{Message: fmt.Sprintf("missing permission %s", permission)}
		}
		return nil
	}
}

// HasAnyPermission requires at least one of the permissions.
func (e *Engine) HasAnyPermission(permissions ...string) Rule {
	return func(_ context.Context, p *auth.Principal) error {
		if p == nil {
			return &auth.AuthenticationError{Message: "authentication required"}
		}
		for _, perm := range permissions {
			if e.hasPermission(p.Role, perm) {
				return nil
			}
		}
		return &auth.AuthorizationError{Message: "missing required permission"}
	}
}

// HasAllPermissions requires every one of the permissions.
func (e *Engine) HasAllPermissions(permissions ...string) Rule {
	return func(_ context.Context, p *auth.Principal) error {
		if p == nil {
			return &auth.AuthenticationError{Message: "authentication required"}
		}
		for _, perm := range permissions {
			if !e.hasPermission(p.Role, perm) {
				return &auth.AuthorizationError{Message: fmt.Sprintf("missing permission %s", perm)}
			}
		}
		return nil
	}
}

// IsOwner requires the principal to own the resource. Absence of the
// resource surfaces as NotFoundError, never as a silent deny, so a
// missing id and a forbidden id are distinguishable to the caller
// that is allowed to know.
func (e *Engine) IsOwner(resourceType string, resourceID uint64) Rule {
	return func(ctx context.Context, p *auth.Principal) error {
		if p == nil {
			return &auth.AuthenticationError{Message: "authentication required"}
		}
		res, err := e.resources.FindResource(ctx, resourceType, resourceID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &auth.NotFoundError{Message: fmt.Sprintf("%s not found", resourceType)}
			}
			return err
		}
		if res.OwnerID == nil || *res.OwnerID != p.UserID {
			return &auth.AuthorizationError{Message: "not the owner of this resource"}
		}
		return nil
	}
}

// CanAccessIfPublic allows anyone, authenticated or not, when the
// resource is flagged public.
func (e *Engine) CanAccessIfPublic(resourceType string, resourceID uint64) Rule {
	return func(ctx context.Context, p *auth.Principal) error {
		res, err := e.resources.FindResource(ctx, resourceType, resourceID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &auth.NotFoundError{Message: fmt.Sprintf("%s not found", resourceType)}
			}
			return err
		}
		if !res.Public {
			// Report absence, not forbidden: a private resource
			// should be indistinguishable from a missing one.
			return &auth.NotFoundError{Message: fmt.Sprintf("%s not found", resourceType)}
		}
		return nil
	}
}

// CanAccessIfOwnerOrPublic allows public resources to anyone and
// private resources to their owner or an admin.
func (e *Engine) CanAccessIfOwnerOrPublic(resourceType string, resourceID uint64) Rule {
	return Or(
		e.CanAccessIfPublic(resourceType, resourceID),
		e.IsOwner(resourceType, resourceID),
		HasRoleOrHigher(model.RoleAdmin),
	)
}

// WithinTimeLimit allows the action only while the window after the
// reference instant is still open, e.g. "a post may be edited within
// 15 minutes of creation". The caller supplies the
// resource's timestamp; the rule does no store lookup of its own.
func WithinTimeLimit(since time.Time, window time.Duration) Rule {
	return func(_ context.Context, _ *auth.Principal) error {
		if time.Since(since) > window {
			return &auth.AuthorizationError{Message: "the time window for this action has passed"}
		}
		return nil
	}
}

// WithinRateLimit consumes one point from the named bucket, keyed by
// the principal id when present and the anonymous identifier
// otherwise.
func (e *Engine) WithinRateLimit(key string, opts ratelimit.Options, anonIdentifier string) Rule {
	return func(ctx context.Context, p *auth.Principal) error {
		identifier := anonIdentifier
		if p != nil {
			identifier = fmt.Sprintf("user:%d", p.UserID)
		}
		err := e.limiter.Consume(ctx, key, identifier, opts, 1)
		if err == nil {
			return nil
		}
		var rl *ratelimit.Error
		if errors.As(err, &rl) {
			secs := int(rl.RetryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			return &auth.RateLimitError{Message: "too many requests, try again later", RetryAfter: secs}
		}
		return err
	}
}
