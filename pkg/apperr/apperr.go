// Package apperr defines the error taxonomy surfaced by the federation services.
//
// Services return *Error values tagged with a Kind; handlers map the kind to an
// HTTP status. Stores return the sentinel values below (optionally wrapped) and
// services translate them into a domain kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuthorization   Kind = "authorization"
	KindInvalidState    Kind = "invalid_state"
	KindConflict        Kind = "conflict"
	KindPaymentCreation Kind = "payment_creation"
	KindNotFound        Kind = "not_found"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

// Store sentinels. These describe facts about persisted records, not input problems.
var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("record conflict")
	ErrInvalidState = errors.New("record in wrong state")
	ErrUnavailable  = errors.New("store unavailable")
)

// Error is a classified error with a caller-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Unclassified
// store sentinels map to their natural kind; anything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	}
	return KindInternal
}

// HasKind reports whether err is classified as kind.
func HasKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-safe message of err, or a generic one for internal errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	switch KindOf(err) {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "operation not permitted in current state"
	case KindUnavailable:
		return "temporarily unavailable"
	}
	return "internal error"
}
