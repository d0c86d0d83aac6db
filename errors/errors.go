// Package errors classifies the failures raised by the artifact lifecycle.
//
// Every failure is fatal for the operation that raised it; the Kind tells
// callers which rule was broken, the wrapped sentinel tells them exactly
// which one. Import with an alias (pkgerrors) to avoid shadowing the
// standard library.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind int

const (
	// KindValidation means the input was rejected before anything was stored.
	KindValidation Kind = iota + 1
	// KindConsistency means reasoning found the artifact inconsistent or out of profile.
	KindConsistency
	// KindIntegrity means the artifact graph is not fully connected.
	KindIntegrity
	// KindConcurrency means the caller worked from a stale version.
	KindConcurrency
	// KindState means the artifact is in the wrong lifecycle state for the operation.
	KindState
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConsistency:
		return "consistency"
	case KindIntegrity:
		return "integrity"
	case KindConcurrency:
		return "concurrency"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Sentinels identifying the specific rule that was broken.
var (
	ErrDuplicateArtifact  = errors.New("artifact already managed")
	ErrUnmanagedSchema    = errors.New("schema import not managed")
	ErrUnmanagedArtifact  = errors.New("artifact not managed")
	ErrEmptyOntology      = errors.New("no ontology identifier found")
	ErrNonUniqueVersion   = errors.New("ontology does not have exactly one current version")
	ErrStaleVersion       = errors.New("version is not the current version")
	ErrPublished          = errors.New("artifact is published")
	ErrUnsupportedPolicy  = errors.New("update policy not supported")
	ErrInconsistent       = errors.New("artifact is inconsistent")
	ErrNotInProfile       = errors.New("artifact is not in the reasoning profile")
	ErrDataReference      = errors.New("data reference verification failed")
	ErrDisconnected       = errors.New("artifact has disconnected objects")
	ErrInvalidStatement   = errors.New("invalid statement")
	ErrUnsupportedRequest = errors.New("unsupported request")
)

// Error is a classified lifecycle failure.
type Error struct {
	Kind    Kind
	Op      string
	Err     error
	Message string

	// Dangling lists the disconnected node identifiers of an integrity failure.
	Dangling []string

	// Explanation is the reasoner's account of a consistency failure.
	Explanation string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return e.Kind.String() + " error"
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error, format string, args []any) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if format != "" {
		e.Message = fmt.Sprintf(format, args...)
	}
	return e
}

// Validationf creates a validation error wrapping err.
func Validationf(op string, err error, format string, args ...any) *Error {
	return newError(KindValidation, op, err, format, args)
}

// Consistencyf creates a consistency error wrapping err.
func Consistencyf(op string, err error, format string, args ...any) *Error {
	return newError(KindConsistency, op, err, format, args)
}

// Integrityf creates an integrity error wrapping err.
func Integrityf(op string, err error, format string, args ...any) *Error {
	return newError(KindIntegrity, op, err, format, args)
}

// Concurrencyf creates a concurrency error wrapping err.
func Concurrencyf(op string, err error, format string, args ...any) *Error {
	return newError(KindConcurrency, op, err, format, args)
}

// Statef creates a state error wrapping err.
func Statef(op string, err error, format string, args ...any) *Error {
	return newError(KindState, op, err, format, args)
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	if e, ok := As(err); ok {
		return e.Kind, true
	}
	return 0, false
}

func isKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsConsistency reports whether err is a consistency error.
func IsConsistency(err error) bool { return isKind(err, KindConsistency) }

// IsIntegrity reports whether err is an integrity error.
func IsIntegrity(err error) bool { return isKind(err, KindIntegrity) }

// IsConcurrency reports whether err is a concurrency error.
func IsConcurrency(err error) bool { return isKind(err, KindConcurrency) }

// IsState reports whether err is a state error.
func IsState(err error) bool { return isKind(err, KindState) }

// DanglingOf returns the disconnected nodes carried by an integrity error.
func DanglingOf(err error) []string {
	if e, ok := As(err); ok {
		return e.Dangling
	}
	return nil
}

// ExplanationOf returns the reasoner explanation carried by a consistency error.
func ExplanationOf(err error) string {
	if e, ok := As(err); ok {
		return e.Explanation
	}
	return ""
}
