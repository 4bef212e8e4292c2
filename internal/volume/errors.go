package volume

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the volume package can
// surface.
type Kind int

const (
	// InvalidArgument covers a non-power-of-two block side, a nil codec,
	// or an invalid wrap mode passed to SetVoxel.
	InvalidArgument Kind = iota
	// OutOfRange covers a coordinate outside the valid region under
	// Validate.
	OutOfRange
	// CodecError covers a compress/decompress failure, or a decompressed
	// length that doesn't match S^3*sizeof(V).
	CodecError
	// NotImplemented covers volume copy construction and assignment,
	// which are rejected by design.
	NotImplemented
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case OutOfRange:
		return "OutOfRange"
	case CodecError:
		return "CodecError"
	case NotImplemented:
		return "NotImplemented"
	default:
		return "Kind(?)"
	}
}

// Error is the error type returned by every fallible operation in this
// package. Callers that care about the category match on Kind via
// errors.As.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
	// Reason narrows a CodecError to one of the two ways a Codec can fail.
	// It is nil for every other Kind, and nil for a CodecError whose
	// origin (a Pager, rather than a Codec) doesn't distinguish the two.
	Reason *CodecErrorReason
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// wrapCodecErr wraps a Codec failure as a CodecError, preserving the
// Reason if err already carries one (from NewCodecError), so a call site
// one layer removed from the Codec itself doesn't have to re-derive it.
func wrapCodecErr(msg string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) && ce.Reason != nil {
		reason := *ce.Reason
		return &Error{Kind: CodecError, Msg: msg, Err: err, Reason: &reason}
	}
	return &Error{Kind: CodecError, Msg: msg, Err: err}
}

// NewCodecError builds the *Error a Codec implementation should return so
// that Compress/Decompress failures carry a Reason through to the volume
// package's own wrapping.
func NewCodecError(reason CodecErrorReason, msg string, err error) *Error {
	return &Error{Kind: CodecError, Msg: msg, Err: err, Reason: &reason}
}

// CodecErrorReason distinguishes the two ways a Codec can fail, per
// spec.md's CodecError{OutOfSpace, Corrupt}.
type CodecErrorReason int

const (
	OutOfSpace CodecErrorReason = iota
	Corrupt
)

func (r CodecErrorReason) String() string {
	if r == OutOfSpace {
		return "OutOfSpace"
	}
	return "Corrupt"
}
