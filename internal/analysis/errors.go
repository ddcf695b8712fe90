package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies why an analysis fell back.
type Kind string

const (
	// KindConfiguration: credentials missing or placeholders; no network call was made.
	KindConfiguration Kind = "configuration"
	// KindTransport: the model call failed (network, auth, rate limit, timeout).
	KindTransport Kind = "transport"
	// KindMalformedResponse: the model reply contained no JSON object.
	KindMalformedResponse Kind = "malformed_response"
	// KindParse: the JSON object in the reply could not be decoded.
	KindParse Kind = "parse"
	// KindUnexpected: anything else, including recovered panics.
	KindUnexpected Kind = "unexpected"
)

// Error is a classified analysis failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnexpected when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func panicError(v any) *Error {
	if err, ok := v.(error); ok {
		return newError(KindUnexpected, fmt.Errorf("panic: %w", err))
	}
	return newError(KindUnexpected, fmt.Errorf("panic: %v", v))
}
