package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the task API client.
type ErrorKind int

const (
	// KindRequestFailed is any non-2xx answer other than 401/403.
	KindRequestFailed ErrorKind = iota
	// KindTimeout means no response arrived before the deadline.
	KindTimeout
	// KindSessionExpired is a 401/403 on an authenticated call.
	KindSessionExpired
	// KindValidationFailed is a client-side precondition failure.
	KindValidationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "Timeout"
	case KindSessionExpired:
		return "SessionExpired"
	case KindValidationFailed:
		return "ValidationFailed"
	default:
		return "RequestFailed"
	}
}

// Error is the typed failure returned by API calls and input validation.
type Error struct {
	Kind    ErrorKind
	Op      string // e.g. "GET /api/tasks"
	Status  int    // HTTP status, 0 when no response was received
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrTimeout) works
// regardless of status or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrRequestFailed    = &Error{Kind: KindRequestFailed, Message: "request failed"}
	ErrTimeout          = &Error{Kind: KindTimeout, Message: "request timed out"}
	ErrSessionExpired   = &Error{Kind: KindSessionExpired, Message: "session expired"}
	ErrValidationFailed = &Error{Kind: KindValidationFailed, Message: "validation failed"}
)

// KindOf returns the kind of err, and false when err is not an *Error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// NewValidationError builds a ValidationFailed error.
func NewValidationError(format string, args ...interface{}) error {
	return &Error{Kind: KindValidationFailed, Message: fmt.Sprintf(format, args...)}
}
