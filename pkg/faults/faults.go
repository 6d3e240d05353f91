package faults

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure so callers can react without
// string-matching error messages.
type Kind int

const (
	Unknown Kind = iota
	NoSession
	NotFound
	RemoteUnavailable
	Unconfirmed
	Timeout
	Validation
)

func (k Kind) String() string {
	switch k {
	case NoSession:
		return "no_session"
	case NotFound:
		return "not_found"
	case RemoteUnavailable:
		return "remote_unavailable"
	case Unconfirmed:
		return "unconfirmed"
	case Timeout:
		return "timeout"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or Unknown if there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
