package authz

import "github.com/iliyamo/auth-service/internal/model"

// Wildcard grants every permission; only ADMIN carries it in the
// default table.
const Wildcard = "*"

// roleLevel fixes the total order over roles used by
// HasRoleOrHigher. Unknown roles rank below USER.
var roleLevel = map[string]int{
	model.RoleUser:      0,
	model.RoleModerator: 1,
	model.RoleAdmin:     2,
}

// RoleAtLeast reports whether role ranks at or above required in the
// hierarchy.
func RoleAtLeast(role, required string) bool {
	rl, ok := roleLevel[role]
	if !ok {
		return false
	}
	req, ok := roleLevel[required]
	if !ok {
		return false
	}
	return rl >= req
}

// DefaultRolePermissions is the single role→permission-set table the
// engine loads at construction. Keeping one copy here, instead of
// inline literals scattered per call site, is what prevents the sets
// from drifting apart.
func DefaultRolePermissions() map[string][]string {
	return map[string][]string{
		model.RoleUser: {
			"post:read",
			"post:create",
			"post:update:own",
			"post:delete:own",
			"profile:update:own",
		},
		model.RoleModerator: {
			"post:read",
			"post:create",
			"post:update:own",
			"post:delete:own",
			"post:update:any",
			"post:delete:any",
			"profile:update:own",
			"user:suspend",
		},
		model.RoleAdmin: {
			Wildcard,
		},
	}
}
