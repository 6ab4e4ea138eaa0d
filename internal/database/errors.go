package database

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a backend failure into the vendor-neutral taxonomy every
// adapter must normalize into before an error crosses the Client boundary.
type Kind string

// Error kinds. Adapters map their driver-specific failures onto these; the
// retry machinery treats KindConnection and KindRateLimit as transient and
// everything else as terminal.
const (
	KindConnection Kind = "connection_error"
	KindAuth       Kind = "auth_error"
	KindPermission Kind = "permission_error"
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindRateLimit  Kind = "rate_limit"
	KindUnknown    Kind = "unknown_error"
)

// Common sentinel errors shared across adapters.
var (
	// ErrNotConnected indicates the client has been closed or never opened.
	ErrNotConnected = errors.New("database client is not connected")

	// ErrNoPrincipal indicates no authenticated user is available.
	ErrNoPrincipal = errors.New("no authenticated principal")

	// ErrUnknownDriver indicates the requested driver was never registered.
	ErrUnknownDriver = errors.New("unknown database driver")
)

// Error is a normalized backend failure. It carries the taxonomy kind, a
// human-readable message, and optionally the underlying driver error.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

// NewError creates a normalized error with the given kind and message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a normalized error wrapping an underlying driver error.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// Errorf creates a normalized error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil && e.err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying driver error, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// KindOf returns the taxonomy kind of err. Untyped errors report KindUnknown;
// context cancellation and deadline expiry report KindConnection so callers
// treat them as transient.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindConnection
	}
	return KindUnknown
}

// IsRetryable reports whether err belongs to a transient kind worth retrying.
// Validation, auth, and permission failures are never retryable.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindRateLimit:
		return true
	default:
		return false
	}
}

// Normalize guarantees err is a *Error. Already-normalized errors pass
// through untouched; anything else is wrapped as KindUnknown.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr
	}
	return &Error{Kind: KindOf(err), Message: err.Error(), err: err}
}
