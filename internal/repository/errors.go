// Package repository defines the persistence interfaces consumed by
// the auth core together with their MySQL and in-memory
// implementations. This file holds sentinel errors shared across the
// repositories. Higher layers translate these into their own typed
// errors at the service boundary; raw driver errors never cross it.
package repository

import "errors"

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrEmailExists is returned by UserStore.Create when the email
// collides with an existing account (unique constraint).
var ErrEmailExists = errors.New("email already exists")

// ErrAlreadyUsed is returned by the conditional mark-used operations
// when the token row was already consumed or revoked. It is the
// signal that another caller won a concurrent rotation.
var ErrAlreadyUsed = errors.New("token already used")
