package model

import "time"

// LoginAttempt is an append-only row in the `login_attempts` table.
// Attempts are only read in aggregate (count of recent failures for
// an email) to decide account lockout; rows are never updated.
type LoginAttempt struct {
    ID         uint64    // login_attempts.id
    Email      string    // login_attempts.email (normalized)
    SourceAddr string    // login_attempts.source_addr (client IP)
    Success    bool      // login_attempts.success
    CreatedAt  time.Time // login_attempts.created_at
}
