// Package errs classifies the failures that can happen while answering a
// one-hop query. Only InvalidQuery and UnsupportedQueryForKP stop a call;
// every other kind is recoverable and is reported as a warning.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes an error. Its string value doubles as the error code
// recorded on a response.
type Kind string

const (
	InvalidQuery                Kind = "InvalidQuery"
	UnsupportedQueryForKP       Kind = "UnsupportedQueryForKP"
	NormalizationServiceFailure Kind = "NormalizationServiceFailure"
	KPTransportFailure          Kind = "KPTransportFailure"
	DataQualityWarning          Kind = "DataQualityWarning"
)

// Terminal reports whether an error of this kind stops the current call.
func (k Kind) Terminal() bool {
	return k == InvalidQuery || k == UnsupportedQueryForKP
}

// Error wraps an underlying error with the operation that failed and its kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, and by op when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// New builds a classified error from a message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsTerminal reports whether err is classified with a terminal kind.
func IsTerminal(err error) bool {
	k, ok := KindOf(err)
	return ok && k.Terminal()
}
