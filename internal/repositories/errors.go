package repositories

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates repository error causes shared by in-process implementations.
type ErrorKind string

const (
	// ErrorKindNotFound indicates the addressed row does not exist.
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindConflict indicates a uniqueness or referential constraint was violated.
	ErrorKindConflict ErrorKind = "conflict"
	// ErrorKindUnavailable indicates the backing store could not be reached.
	ErrorKindUnavailable ErrorKind = "unavailable"
)

// Error is a RepositoryError carrying a machine readable kind.
type Error struct {
	Op      string
	Kind    ErrorKind
	Message string
	// Field names the unique column behind a conflict, when known.
	Field string
	Err   error
}

var _ RepositoryError = (*Error)(nil)

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the error represents a missing row.
func (e *Error) IsNotFound() bool { return e != nil && e.Kind == ErrorKindNotFound }

// IsConflict reports whether the error represents a constraint violation.
func (e *Error) IsConflict() bool { return e != nil && e.Kind == ErrorKindConflict }

// IsUnavailable reports whether the error represents a transient outage.
func (e *Error) IsUnavailable() bool { return e != nil && e.Kind == ErrorKindUnavailable }

// NewNotFoundError constructs a not-found repository error.
func NewNotFoundError(op, message string) *Error {
	if message == "" {
		message = string(ErrorKindNotFound)
	}
	return &Error{Op: op, Kind: ErrorKindNotFound, Message: message}
}

// NewConflictError constructs a conflict repository error.
func NewConflictError(op, message string, err error) *Error {
	if message == "" {
		message = string(ErrorKindConflict)
	}
	return &Error{Op: op, Kind: ErrorKindConflict, Message: message, Err: err}
}

// NewUnavailableError constructs an unavailable repository error.
func NewUnavailableError(op string, err error) *Error {
	message := string(ErrorKindUnavailable)
	if err != nil {
		message = err.Error()
	}
	return &Error{Op: op, Kind: ErrorKindUnavailable, Message: message, Err: err}
}

// NewFieldConflictError constructs a conflict error for a duplicate value of field.
func NewFieldConflictError(op, field string, err error) *Error {
	return &Error{
		Op:      op,
		Kind:    ErrorKindConflict,
		Message: fmt.Sprintf("duplicate %s", field),
		Field:   field,
		Err:     err,
	}
}

// ConflictField returns the unique field behind a conflict error, or "" when
// err is not a conflict or the field is unknown.
func ConflictField(err error) string {
	var repoErr *Error
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		return repoErr.Field
	}
	return ""
}
