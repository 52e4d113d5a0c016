package access

import (
	"errors"
	"fmt"
)

// Kind is the stable, caller-visible category of an access control failure
type Kind string

const (
	KindForbidden               Kind = "forbidden"
	KindInvalidTransition       Kind = "invalid_transition"
	KindDuplicateInvitation     Kind = "duplicate_invitation"
	KindLastAdmin               Kind = "last_admin"
	KindNotAMember              Kind = "not_a_member"
	KindOutOfScope              Kind = "out_of_scope"
	KindInsufficientAccessLevel Kind = "insufficient_access_level"
	KindBusy                    Kind = "busy"
	KindUnavailable             Kind = "unavailable"
	KindNotFound                Kind = "not_found"
	KindInvalidArgument         Kind = "invalid_argument"
	KindAlreadyMember           Kind = "already_member"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrForbidden               = &Error{Kind: KindForbidden}
	ErrInvalidTransition       = &Error{Kind: KindInvalidTransition}
	ErrDuplicateInvitation     = &Error{Kind: KindDuplicateInvitation}
	ErrLastAdmin               = &Error{Kind: KindLastAdmin}
	ErrNotAMember              = &Error{Kind: KindNotAMember}
	ErrOutOfScope              = &Error{Kind: KindOutOfScope}
	ErrInsufficientAccessLevel = &Error{Kind: KindInsufficientAccessLevel}
	ErrBusy                    = &Error{Kind: KindBusy}
	ErrUnavailable             = &Error{Kind: KindUnavailable}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrInvalidArgument         = &Error{Kind: KindInvalidArgument}
	ErrAlreadyMember           = &Error{Kind: KindAlreadyMember}
)

// Error carries a Kind plus the operation that produced it
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Errorf builds an error of the given kind with a formatted message
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// Errors outside the taxonomy are reported as KindUnavailable; nil yields "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// IsRetryable reports whether the caller may retry the same request unchanged
func IsRetryable(err error) bool {
	return KindOf(err) == KindBusy
}

// IsDenial reports whether err is an authorization failure rather than a
// conflict or an outage
func IsDenial(err error) bool {
	switch KindOf(err) {
	case KindForbidden, KindNotAMember, KindOutOfScope, KindInsufficientAccessLevel:
		return true
	}
	return false
}
