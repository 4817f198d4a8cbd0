package vterr

import (
	"context"
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	InvalidCredentials
	InvalidArea
	InvalidInput
	SessionTimeout
	TransportFailure
	NotFound
	TrustAnchor
)

func (k Kind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid credentials"
	case InvalidArea:
		return "invalid area"
	case InvalidInput:
		return "invalid input"
	case SessionTimeout:
		return "session timeout"
	case TransportFailure:
		return "transport failure"
	case NotFound:
		return "not found"
	case TrustAnchor:
		return "trust anchor"
	}
	return "unknown"
}

// Error carries the kind of failure, the operation that failed and
// the underlying cause (which may be nil).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err.Error())
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports true for a bare sentinel (no Op, no Err) of the same kind,
// so errors.Is(err, ErrSessionTimeout) works on any wrapped *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Err != nil {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrInvalidCredentials = &Error{Kind: InvalidCredentials}
	ErrInvalidArea        = &Error{Kind: InvalidArea}
	ErrInvalidInput       = &Error{Kind: InvalidInput}
	ErrSessionTimeout     = &Error{Kind: SessionTimeout}
	ErrTransport          = &Error{Kind: TransportFailure}
	ErrNotFound           = &Error{Kind: NotFound}
	ErrTrustAnchor        = &Error{Kind: TrustAnchor}
)

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Transport classifies a network level failure. Timeouts and context
// cancellation are transport failures like any other, they are never
// reported as a credentials problem.
func Transport(op string, err error) error {
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out: %w", err)
	}
	return &Error{Kind: TransportFailure, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Retryable reports whether retrying the same operation could succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case TransportFailure, SessionTimeout:
		return true
	}
	return false
}
