// Package fault defines the error taxonomy shared by every stage of the
// publishing pipeline.
//
// Callers should branch on Kind rather than matching error strings. Error()
// strings are human-readable and may evolve; use errors.As to extract *Error
// for structured handling.
package fault

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindTransform  Kind = "Transform"
	KindProbe      Kind = "Probe"
	KindEncoding   Kind = "Encoding"
	KindFetch      Kind = "Fetch"
	KindUpload     Kind = "Upload"
	KindGeneration Kind = "Generation"
	KindInvalid    Kind = "Invalid"
	KindConfig     Kind = "Config"
	KindMint       Kind = "Mint"
)

// Error is the structured error type returned by pipeline components.
//
// Op names the operation that failed (e.g. "shrink.compress", "weave.sign").
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return e.Op + ": " + e.Message
	}
	return e.Op + ": " + e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a *Error without a cause.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Newf is like New with a formatted message.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a *Error carrying cause. A nil cause yields the same result as New.
func Wrap(kind Kind, op, msg string, cause error) error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// Message returns the single user-facing message for err's kind.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindTransform:
		return "image could not be reduced to the size budget"
	case KindProbe:
		return "file is not a readable image"
	case KindEncoding:
		return "token metadata could not be encoded"
	case KindFetch:
		return "image could not be downloaded"
	case KindUpload:
		return "upload failed"
	case KindGeneration:
		return "generation returned no image"
	case KindInvalid:
		return "invalid request"
	case KindConfig:
		return "invalid configuration"
	case KindMint:
		return "minting transaction failed"
	default:
		return "publish failed"
	}
}
