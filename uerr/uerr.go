// Package uerr defines the error kinds surfaced across the UDT engine's
// application-facing surface.
package uerr

import "fmt"

// Kind classifies an engine error so callers can branch on uerr.Is
// without string matching.
type Kind int

const (
	// Other covers internal invariant violations; reaching it from
	// application code indicates a bug in the engine, not caller misuse.
	Other Kind = iota
	// InvalidInput is a bad address or an address that resolved to nothing.
	InvalidInput
	// InvalidData is a malformed wire packet.
	InvalidData
	// TimedOut covers connect deadlines and broken-connection timeouts.
	TimedOut
	// ConnectionRefused is a rejected handshake.
	ConnectionRefused
	// ConnectionReset is a peer Shutdown or an EXP-threshold break.
	ConnectionReset
	// OutOfMemory signals a full send buffer; callers should suspend, not fail hard.
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case InvalidData:
		return "invalid data"
	case TimedOut:
		return "timed out"
	case ConnectionRefused:
		return "connection refused"
	case ConnectionReset:
		return "connection reset"
	case OutOfMemory:
		return "out of memory"
	default:
		return "other"
	}
}

// Error is a Kind-tagged error wrapping an optional underlying cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind wrapping cause. Returns nil if
// cause is nil, so it is safe to use as `return uerr.Wrap(Other, "x", err)`.
func Wrap(kind Kind, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is reports whether err (or anything it wraps) is an *Error of kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
