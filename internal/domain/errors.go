package domain

import "errors"

// Sentinel errors for the conversation core. The service layer wraps these
// and handlers translate them to HTTP statuses.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)
