package core

import (
	"errors"
	"fmt"
)

// ErrorKind is a machine-readable error category. The adapter maps each kind
// to one of the result envelope shapes.
type ErrorKind string

const (
	// KindMalformedInput marks a command string or payload that could not be parsed.
	KindMalformedInput ErrorKind = "malformed_input"
	// KindUnsupportedOperation marks an operation token outside the known set.
	KindUnsupportedOperation ErrorKind = "unsupported_operation"
	// KindNotFound marks a read, update or delete against a missing document.
	KindNotFound ErrorKind = "not_found"
	// KindBackendFailure marks any failure reported by the backing store.
	KindBackendFailure ErrorKind = "backend_failure"
	// KindMissingIndex marks a query the backing store cannot serve without a composite index.
	KindMissingIndex ErrorKind = "missing_index"
	// KindUninitialized marks a call made while no backing store is connected.
	KindUninitialized ErrorKind = "uninitialized"
	// KindInternal marks an unexpected failure such as a recovered panic.
	KindInternal ErrorKind = "internal"
)

// ErrDocumentNotFound is returned by stores when an operation requires an
// existing document and there is none.
var ErrDocumentNotFound = errors.New("document not found")

// Error wraps an error with a kind and a user-facing message.
type Error struct {
	Kind    ErrorKind
	Message string
	Details string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// WrapError creates an error of the given kind around an underlying error.
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindBackendFailure for any other non-nil error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackendFailure
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
