package client

import "errors"

var (
	ErrUnavailable   = errors.New("server unavailable")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("email already registered")
	ErrNotFound      = errors.New("user not found")
	ErrInvalidInput  = errors.New("invalid input")
)
