package adlschema

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested declaration or module does not exist.
	ErrNotFound = errors.New("adlschema: not found")

	// ErrInvalidAST is returned when an AST document cannot be decoded.
	ErrInvalidAST = errors.New("adlschema: invalid ast")
)

// NotFoundError represents an error when a declaration or module is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the name that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("adlschema: %s not found (name=%v)", e.label, e.id)
	}
	return fmt.Sprintf("adlschema: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the kind of entity that was looked up.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the name that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity kind.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the name that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// DecodeError reports an AST document that could not be decoded.
type DecodeError struct {
	Source string
	wrap   error
}

// Error returns the error string.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("adlschema: decode %s: %v", e.Source, e.wrap)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.wrap
}

// Is reports whether the target matches ErrInvalidAST.
func (e *DecodeError) Is(err error) bool {
	return err == ErrInvalidAST
}

// NewDecodeError returns a new DecodeError.
func NewDecodeError(source string, err error) *DecodeError {
	return &DecodeError{Source: source, wrap: err}
}

// IsDecodeError returns true if the error is a DecodeError.
func IsDecodeError(err error) bool {
	if err == nil {
		return false
	}
	var e *DecodeError
	return errors.As(err, &e)
}

// AggregateError collects multiple errors, such as every AST file that
// failed to load in a single pass.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "adlschema: %d errors occurred:", len(e.Errors))
	for _, err := range e.Errors {
		b.WriteString("\n\t* ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns an AggregateError for the non-nil errors, or nil
// if there are none.
func NewAggregateError(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return &AggregateError{Errors: nonNil}
}
