package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures the caller can act on
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindBadRequest
	KindUnauthorized
	KindNotFound
	KindTooManyRequests
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "Bad Request"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotFound:
		return "Not Found"
	case KindTooManyRequests:
		return "Too Many Requests"
	default:
		return "Internal Server Error"
	}
}

// Error is a recoverable domain failure carrying a human-readable message
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// BadRequest returns a KindBadRequest error carrying msg verbatim.
// Unauthorized, NotFound and TooManyRequests do the same for their kinds.
func BadRequest(msg string) error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func TooManyRequests(msg string) error {
	return &Error{Kind: KindTooManyRequests, Message: msg}
}

// BadRequestf is BadRequest with a formatted message
func BadRequestf(format string, args ...any) error {
	return BadRequest(fmt.Sprintf(format, args...))
}

// TooManyRequestsf is TooManyRequests with a formatted message
func TooManyRequestsf(format string, args ...any) error {
	return TooManyRequests(fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first domain error in err's chain,
// or KindUnknown for collaborator failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}
