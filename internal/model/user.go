package model

import "time"

// Role names stored in the `users.role` column. The authorization
// engine orders them USER < MODERATOR < ADMIN.
const (
    RoleUser      = "USER"
    RoleModerator = "MODERATOR"
    RoleAdmin     = "ADMIN"
)

// Account status values stored in the `users.status` column.  Only
// ACTIVE accounts may log in; SUSPENDED and BANNED accounts keep
// their rows but are denied authentication.
const (
    StatusActive    = "ACTIVE"
    StatusSuspended = "SUSPENDED"
    StatusBanned    = "BANNED"
)

// User represents an application account as stored in the `users`
// table. Each field corresponds to a column in the database. The
// json tags are omitted here because these structs are primarily
// used internally by the repository layer; handlers define separate
// response types with appropriate JSON tags.
//
// Fields:
//  ID              – primary key identifier of the user.
//  Email           – unique email address, normalized to lowercase.
//  Name            – optional display name.
//  PasswordHash    – bcrypt hashed password; never exposed.
//  Role            – role name (USER, MODERATOR or ADMIN).
//  Status          – account status (ACTIVE, SUSPENDED or BANNED).
//  EmailVerifiedAt – when the email was confirmed; nil until then.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type User struct {
    ID              uint64     // users.id
    Email           string     // users.email
    Name            string     // users.name
    PasswordHash    string     // users.password_hash
    Role            string     // users.role
    Status          string     // users.status
    EmailVerifiedAt *time.Time // users.email_verified_at
    CreatedAt       time.Time  // users.created_at
    UpdatedAt       time.Time  // users.updated_at
}
