package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
)

// ErrorKind classifies failures surfaced by the storefront components.
type ErrorKind int

const (
	// KindNetwork is a transport failure: offline, refused connection, timeout, non-2xx without a body we understand.
	KindNetwork ErrorKind = iota + 1
	// KindServerRejection is a well-formed response with success=false.
	KindServerRejection
	// KindMalformedResponse is a body that is not JSON or lacks the expected payload.
	KindMalformedResponse
	// KindValidation is a client-side rule violation that never reached the network.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindServerRejection:
		return "server rejection"
	case KindMalformedResponse:
		return "malformed response"
	case KindValidation:
		return "validation failure"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrNetwork           = &Error{Kind: KindNetwork}
	ErrServerRejection   = &Error{Kind: KindServerRejection}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrValidation        = &Error{Kind: KindValidation}
)

// Error is the single error type returned across component boundaries.
// Message is safe to show to a shopper or admin verbatim.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can write errors.Is(err, domain.ErrNetwork).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an *Error with a formatted user-facing message.
func NewError(kind ErrorKind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the ErrorKind of err, or 0 if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// MessageOf returns the user-facing message carried by err, falling back to fallback.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
