package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinels for the closed set of failure kinds a gateway call can report.
// Match them with errors.Is.
var (
	ErrTransport  = errors.New("transport error")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
)

type Error struct {
	Kind       error
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

func transportError(op string, err error) *Error {
	return &Error{Kind: ErrTransport, Op: op, Err: err}
}

// statusError classifies a non-2xx response. Conflict is reserved for the lock
// endpoints; a 409 anywhere else is a rejected request.
func statusError(op string, status int, message string, lockCall bool) *Error {
	e := &Error{Op: op, StatusCode: status, Message: message}
	switch {
	case status == http.StatusConflict && lockCall:
		e.Kind = ErrConflict
	case status == http.StatusNotFound:
		e.Kind = ErrNotFound
	case status >= 400 && status < 500:
		e.Kind = ErrValidation
	default:
		e.Kind = ErrTransport
	}
	return e
}

// IsConflict reports whether err is a lock contention or expiry response.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// Message returns the human readable part of err for display.
func Message(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && strings.TrimSpace(gwErr.Message) != "" {
		return gwErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
