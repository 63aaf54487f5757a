// Package apperror defines the domain-level outcome taxonomy surfaced to API
// callers. Services and the session orchestrator return *Error values; the
// HTTP layer maps Kind to a status code and never exposes wrapped internals.
package apperror

import (
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the outcomes the API can surface.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindBadRequest   Kind = "bad_request"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

// Error is a classified application error. Message is safe to return to the
// caller; Err (optional) carries the underlying cause for logs only.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code implied by the error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Unauthorized builds an Error for bad or expired credentials and tokens.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// BadRequest builds an Error for a validation failure.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Conflict builds an Error for a uniqueness or state conflict.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NotFound builds an Error for a missing resource. Callers must use the same
// message whether the resource does not exist or belongs to someone else.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Internal builds an Error for an unexpected failure. The cause is retained
// for logging but the message is all a caller ever sees.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

// From returns err as an *Error if it is one, otherwise wraps it as Internal
// with a generic message.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return ae
	}
	return Internal("internal error", err)
}
