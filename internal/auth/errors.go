// Package auth implements the authentication core: password
// hashing, access/refresh token lifecycle, verification tokens,
// login attempt tracking with account lockout, and the service
// facade that ties them together. Persistence is injected through
// the repository interfaces; nothing in this package talks SQL.
package auth

import "fmt"

// The error types below form the domain vocabulary callers match
// with errors.As. Handlers translate them into transport status
// codes; nothing in this package knows about HTTP.

// AuthenticationError means the credential or token is missing,
// invalid or expired. Messages are deliberately generic so callers
// cannot probe which precise check failed.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// ErrInvalidCredentials is the uniform login failure. The same
// message covers unknown email and wrong password to prevent
// account enumeration.
func ErrInvalidCredentials() *AuthenticationError {
	return &AuthenticationError{Message: "invalid email or password"}
}

// ErrInvalidToken is the uniform access-token failure.
func ErrInvalidToken() *AuthenticationError {
	return &AuthenticationError{Message: "invalid or expired token"}
}

// ErrInvalidRefreshToken is the uniform refresh failure, covering
// unknown, used, revoked and expired tokens alike.
func ErrInvalidRefreshToken() *AuthenticationError {
	return &AuthenticationError{Message: "invalid refresh token"}
}

// AuthorizationError means the principal is authenticated but lacks
// the rights for the operation.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NotFoundError means the referenced account or resource does not
// exist. Private resources report absence rather than forbidden so
// their existence does not leak.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError means a unique constraint was violated, e.g. the
// email is already registered.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ValidationError means the input itself is malformed. Fields holds
// per-field messages for the caller to surface.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Fields)
}

// fieldError builds a single-field ValidationError.
func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Message: "validation failed", Fields: map[string]string{field: msg}}
}

// RateLimitError means the operation was throttled. RetryAfter is
// seconds until the caller may try again. The lockout tracker uses
// it too, with its own generic message.
type RateLimitError struct {
	Message    string
	RetryAfter int
}

func (e *RateLimitError) Error() string { return e.Message }
