package kanban

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind categorizes a failed remote operation. Mutation callers use the
// kind to derive a user-facing message; the store rollback happens for every
// kind alike.
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindTimeout      ErrorKind = "timeout"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindValidation   ErrorKind = "validation"
	KindServer       ErrorKind = "server"
	KindUnknown      ErrorKind = "unknown"
)

// Error is a categorized remote-operation failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // zero when the failure happened before an HTTP response
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errKind builds a categorized error around an underlying cause.
func errKind(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// kindFromStatus maps an HTTP response status to an error kind.
func kindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnprocessableEntity:
		return KindValidation
	}
	if status >= 500 {
		return KindServer
	}
	return KindUnknown
}

// categorize wraps a transport-level failure (no HTTP response received)
// into a network or timeout error.
func categorize(err error) *Error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	default:
		return &Error{Kind: KindNetwork, Message: "could not reach server", Err: err}
	}
}

// KindOf returns the kind of a categorized error, or KindUnknown for any
// other error. A nil error has no kind and panics the caller's logic if
// asked, so it returns KindUnknown too.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound returns true if the error is a categorized not-found failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsForbidden returns true if the error is a categorized forbidden failure.
func IsForbidden(err error) bool {
	return KindOf(err) == KindForbidden
}

// IsConflict returns true if the error is a categorized conflict failure.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}
