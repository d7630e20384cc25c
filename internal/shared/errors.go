package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrBadRequest indicates a missing or malformed request element.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized indicates an invalid token or failed credential check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an authenticated principal lacking the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a request that conflicts with current state.
	ErrConflict = errors.New("conflict")
	// ErrTooManyRequests indicates the caller exceeded its rate limit.
	ErrTooManyRequests = errors.New("too many requests")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = &Error{Kind: ErrUnauthorized, Message: "invalid email or password"}
)

// Error is a client-safe failure. Message is shown to callers as is, so it
// must never carry storage or driver detail.
type Error struct {
	Kind    error
	Message string
}

// NewError builds an Error of the given kind with a formatted message.
func NewError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind sentinel to errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

// BadRequest is shorthand for NewError(ErrBadRequest, ...).
func BadRequest(format string, args ...any) *Error {
	return NewError(ErrBadRequest, format, args...)
}

// Unauthorized is shorthand for NewError(ErrUnauthorized, ...).
func Unauthorized(format string, args ...any) *Error {
	return NewError(ErrUnauthorized, format, args...)
}

// NotFound is shorthand for NewError(ErrNotFound, ...).
func NotFound(format string, args ...any) *Error {
	return NewError(ErrNotFound, format, args...)
}

// Conflict is shorthand for NewError(ErrConflict, ...).
func Conflict(format string, args ...any) *Error {
	return NewError(ErrConflict, format, args...)
}
