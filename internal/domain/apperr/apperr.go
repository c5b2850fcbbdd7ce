// Package apperr defines the error taxonomy shared by every domain package.
//
// Domain code returns *Error values (usually through package-level sentinels)
// and the HTTP layer maps their Kind to a status code. Kind matching works
// through wrapping:
//
//	errors.Is(err, apperr.ErrNotFound)
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind classifies a failure for callers that need to decide how to react.
type Kind uint8

const (
	// KindFatal is a persistence or transport failure. It is the zero value so
	// that unclassified errors are never mistaken for client mistakes.
	KindFatal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "fatal"
	}
}

// Kind sentinels, usable as errors.Is targets.
var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
)

// Error is a classified domain error. Field names the offending input field,
// if any.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Is reports whether target is an *Error of the same kind. Kind sentinels
// match any error of their kind; other targets also need the same message.
// Field is ignored, so a sentinel still matches after WithField.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if isKindSentinel(t) {
		return true
	}
	return t.Message == e.Message
}

func isKindSentinel(e *Error) bool {
	switch e {
	case ErrValidation, ErrNotFound, ErrUnauthorized, ErrForbidden, ErrConflict:
		return true
	}
	return false
}

// Validation returns a validation error for field.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

// NotFound returns a not-found error. Field is set when the missing entity
// was referenced from a request body rather than addressed by path.
func NotFound(field, msg string) *Error {
	return &Error{Kind: KindNotFound, Field: field, Message: msg}
}

// Conflict returns a referential-protection error.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Unauthorized returns an authentication error.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Forbidden returns an authorization error.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// WithField returns a copy of err bound to field. Use it when a sentinel is
// surfaced through a request-body reference.
func WithField(err *Error, field string) *Error {
	c := *err
	c.Field = field
	return &c
}

// KindOf returns the kind of the first *Error in err's chain, or KindFatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
