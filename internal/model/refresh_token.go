package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and carries metadata for expiry,
// single-use rotation and revocation.  The plain token is never
// stored; only its SHA-256 hash.
//
// A token is live while UsedAt and RevokedAt are both nil and
// ExpiresAt lies in the future.  A successful refresh sets UsedAt
// exactly once; logout sets RevokedAt on every live token of the
// user.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash (SHA-256 hex)
    ExpiresAt time.Time  // refresh_tokens.expires_at
    UsedAt    *time.Time // refresh_tokens.used_at, nil until rotated
    RevokedAt *time.Time // refresh_tokens.revoked_at, nil until revoked
    CreatedAt time.Time  // refresh_tokens.created_at
}

// Live reports whether the token can still be exchanged at the given
// instant.  It does not consult the store; callers must re-check the
// used flag atomically when consuming the token.
func (t *RefreshToken) Live(now time.Time) bool {
    return t.UsedAt == nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
