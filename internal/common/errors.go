// Package common defines shared constants and sentinel errors used across
// the identity service layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrStorageUnavailable marks transient storage failures (connectivity,
	// deadlines). Callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrValidation is the parent of every client input error.
	ErrValidation = errors.New("validation error")

	ErrPasswordTooWeak  = &validationError{msg: "password too weak"}
	ErrPasswordMismatch = &validationError{msg: "password and confirmation do not match"}
	ErrInvalidEmail     = &validationError{msg: "invalid email"}
	ErrUnknownClaim     = &validationError{msg: "unknown claim"}

	// Account errors.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("forbidden")

	// Token lifecycle errors.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrRefreshTokenReused    = errors.New("refresh token reused")
)

// validationError is a sentinel that also matches ErrValidation.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }
