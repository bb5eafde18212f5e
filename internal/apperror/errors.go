// Package apperror defines the error kinds surfaced by the service layer.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInvalidState Kind = "invalid_state"
	KindValidation   Kind = "validation_error"
	KindInternal     Kind = "internal"
)

// Error carries a kind and a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinel kinds. errors.Is(err, ErrNotFound) matches every NotFound error.
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrValidation   = &Error{Kind: KindValidation}
)

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }
func InvalidState(message string) *Error { return New(KindInvalidState, message) }
func Validation(message string) *Error   { return New(KindValidation, message) }

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the message of the outermost *Error in the chain.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		return string(appErr.Kind)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
