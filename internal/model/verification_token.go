package model

import "time"

// Verification token types stored in the `verification_tokens.type`
// column.  Email verification tokens default to a 24 hour lifetime;
// password reset tokens to 1 hour.
const (
    TokenTypeEmailVerification = "email_verification"
    TokenTypePasswordReset     = "password_reset"
)

// VerificationToken models an entry in the `verification_tokens`
// table.  These are single-use, short-lived tokens handed to a user
// out of band (email link) to prove control of the address, distinct
// from the refresh tokens that back login sessions.  At most one
// live token per (user, type) exists: creating a new one marks all
// prior unused tokens of the same type as used.
type VerificationToken struct {
    ID        uint64     // verification_tokens.id
    UserID    uint64     // verification_tokens.user_id
    Type      string     // verification_tokens.type
    TokenHash string     // verification_tokens.token_hash (SHA-256 hex)
    ExpiresAt time.Time  // verification_tokens.expires_at
    UsedAt    *time.Time // verification_tokens.used_at, nil until consumed
    CreatedAt time.Time  // verification_tokens.created_at
}
