// Package fault classifies failures of robot capabilities so calling layers can
// branch on the kind of failure instead of inspecting message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a capability failure.
type Kind int

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = iota
	// KindInvalidRequest means the arguments were rejected before anything was sent.
	KindInvalidRequest
	// KindPrecondition means a required input (e.g. heading) was never observed.
	KindPrecondition
	// KindTimeout means the operation ran out of time; the actuator was stopped first.
	KindTimeout
	// KindTransport means encoding or sending on the underlying channel failed.
	KindTransport
	// KindBusy means another motion primitive is already running.
	KindBusy
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindInvalidRequest: "invalid_request",
	KindPrecondition:   "precondition",
	KindTimeout:        "timeout",
	KindTransport:      "transport",
	KindBusy:           "busy",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure of the operation Op.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-issuing the same request may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindBusy
}

// Wrap classifies err as kind for operation op. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// New builds a classified error from a formatted message.
func New(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a classified, retryable failure.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}
