package circle

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure so callers can map it to a response.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindAuthorization       Kind = "authorization"
	KindConflict            Kind = "conflict"
	KindTransport           Kind = "transport"
	KindUnauthorizedTrigger Kind = "unauthorized_trigger"
)

// Error is the typed failure returned by every Service operation.
type Error struct {
	Kind    Kind   // Machine-readable classification
	Message string // User-facing description
	Cause   error  // Wrapped underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAuthorization       = &Error{Kind: KindAuthorization, Message: "not allowed"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "conflict"}
	ErrTransport           = &Error{Kind: KindTransport, Message: "email delivery failed"}
	ErrUnauthorizedTrigger = &Error{Kind: KindUnauthorizedTrigger, Message: "unauthorized trigger"}
)

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func authorizationf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func transportError(message string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, Cause: cause}
}
