// Package errs defines the typed error kinds surfaced by scenetree's public
// operations (spec §7). No core operation logs; errors are returned to the
// caller at the operation boundary.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can branch with errors.Is against the
// package-level sentinels below, without string matching.
type Kind uint8

const (
	_ Kind = iota
	InvalidArgument
	IndexOutOfRange
	TypeMismatch
	ObjectDisposed
	InvalidState
	IODecode
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case IndexOutOfRange:
		return "index out of range"
	case TypeMismatch:
		return "type mismatch"
	case ObjectDisposed:
		return "object disposed"
	case InvalidState:
		return "invalid state"
	case IODecode:
		return "io/decode"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by scenetree operations.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "Container.Write"
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

// Is allows errors.Is(err, errs.InvalidArgumentErr) (and the other sentinels
// below) to match any *Error sharing the same Kind, regardless of Op/Msg.
func (e *Error) Is(target error) bool {
	var sentinel *Error
	if !errors.As(target, &sentinel) {
		return false
	}
	if sentinel.Op != "" || sentinel.Msg != "" {
		return false
	}
	return e.Kind == sentinel.Kind
}

// New constructs an *Error for the given kind, operation, and message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting of msg.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Sentinels usable with errors.Is to classify an error by Kind alone.
var (
	InvalidArgumentErr = &Error{Kind: InvalidArgument}
	IndexOutOfRangeErr = &Error{Kind: IndexOutOfRange}
	TypeMismatchErr    = &Error{Kind: TypeMismatch}
	ObjectDisposedErr  = &Error{Kind: ObjectDisposed}
	InvalidStateErr    = &Error{Kind: InvalidState}
	IODecodeErr        = &Error{Kind: IODecode}
)

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
