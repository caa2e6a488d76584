// Package syncerr defines the error kinds a LeafSync session classifies
// failures into, so callers can branch on disposition without depending on
// library-specific error types.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind is one of the seven dispositions a failure is classified into.
type Kind string

const (
	KindTransport Kind = "TransportError"
	KindTrust     Kind = "TrustError"
	KindProtocol  Kind = "ProtocolError"
	KindIntegrity Kind = "IntegrityError"
	KindIo        Kind = "IoError"
	KindTimeout   Kind = "TimeoutError"
	KindBusy      Kind = "Busy"
)

// Error wraps an underlying cause with a classification kind.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a classified error.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf returns the classification of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
