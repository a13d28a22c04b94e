package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies analysis failures. Backend absence is not a Kind: an
// unavailable backend selects the simulated path and never surfaces as an
// error.
type Kind int

const (
	// KindInternal is an unexpected failure; always logged with the input id
	// and stage so it can be reproduced.
	KindInternal Kind = iota
	// KindInputDecode means the provided bytes could not be staged or
	// decoded as a frame or audio clip.
	KindInputDecode
	// KindBackendInference means an available backend failed on this input.
	KindBackendInference
	// KindInferenceTimeout means the per-item inference deadline was
	// exceeded.
	KindInferenceTimeout
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindInputDecode:
		return "input_decode_failure"
	case KindBackendInference:
		return "backend_inference_failure"
	case KindInferenceTimeout:
		return "inference_timeout"
	default:
		return "internal_error"
	}
}

// Error is a typed analysis failure with its original cause attached.
// Input is the per-request id stamped on log lines for the same request.
type Error struct {
	Kind  Kind
	Stage string
	Input string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s (input=%s): %v", e.Kind, e.Stage, e.Input, e.Err)
	}
	return fmt.Sprintf("%s at %s (input=%s)", e.Kind, e.Stage, e.Input)
}

// Unwrap returns the original cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, stage, input string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Input: input, Err: cause}
}

// KindOf extracts the Kind from err. Unknown errors report KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
