// Package gen runs the adlschema pipeline: it resolves a declaration store
// into a Graph of projected declarations and drives output targets over it.
package gen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/adlschema/adlast"
)

// Sentinel errors for common failure cases.
var (
	// ErrInvalidSchema indicates a declaration that cannot be rendered by a target.
	ErrInvalidSchema = errors.New("adlschema: invalid schema")
	// ErrMissingConfig indicates a configuration error.
	ErrMissingConfig = errors.New("adlschema: missing configuration")
	// ErrInvalidLink indicates a reference between declarations that cannot be resolved to a table.
	ErrInvalidLink = errors.New("adlschema: invalid link")
	// ErrGenerationFailed indicates a target failure.
	ErrGenerationFailed = errors.New("adlschema: generation failed")
	// ErrValidationFailed indicates generated output that does not match a snapshot.
	ErrValidationFailed = errors.New("adlschema: validation failed")
)

// SchemaError represents a declaration a target cannot handle.
type SchemaError struct {
	Decl    adlast.ScopedName
	Field   string // Field name (if applicable)
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("adlschema: schema error")
	if e.Decl != (adlast.ScopedName{}) {
		b.WriteString(" on ")
		b.WriteString(e.Decl.String())
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(decl adlast.ScopedName, field, message string, cause error) *SchemaError {
	return &SchemaError{
		Decl:    decl,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("adlschema: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("adlschema: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// LinkError represents a foreign key or relation that cannot be built.
type LinkError struct {
	From    adlast.ScopedName
	To      adlast.ScopedName
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *LinkError) Error() string {
	var b strings.Builder
	b.WriteString("adlschema: link error")
	if e.Field != "" {
		b.WriteString(" on field ")
		b.WriteString(e.Field)
	}
	switch {
	case e.From != (adlast.ScopedName{}) && e.To != (adlast.ScopedName{}):
		fmt.Fprintf(&b, " (%s -> %s)", e.From, e.To)
	case e.From != (adlast.ScopedName{}):
		b.WriteString(" from ")
		b.WriteString(e.From.String())
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *LinkError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for LinkError.
func (e *LinkError) Is(target error) bool {
	return target == ErrInvalidLink
}

// NewLinkError creates a new LinkError.
func NewLinkError(from, to adlast.ScopedName, field, message string, cause error) *LinkError {
	return &LinkError{
		From:    from,
		To:      to,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// GenerationError represents a target failure.
type GenerationError struct {
	Phase   string // target name: "sql", "prisma", "graphql", ...
	File    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	var b strings.Builder
	b.WriteString("adlschema: generation error")
	if e.Phase != "" {
		b.WriteString(" in phase ")
		b.WriteString(e.Phase)
	}
	if e.File != "" {
		b.WriteString(" (file: ")
		b.WriteString(e.File)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(phase, file, message string, cause error) *GenerationError {
	return &GenerationError{
		Phase:   phase,
		File:    file,
		Message: message,
		Cause:   cause,
	}
}

// ValidationError represents generated output that drifted from a snapshot.
type ValidationError struct {
	Table   string
	Column  string
	Value   any
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("adlschema: validation error")
	if e.Table != "" {
		b.WriteString(" on table ")
		b.WriteString(e.Table)
	}
	if e.Column != "" {
		b.WriteString(" column ")
		b.WriteString(e.Column)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationError creates a new ValidationError.
func NewValidationError(table, column string, value any, message string) *ValidationError {
	return &ValidationError{
		Table:   table,
		Column:  column,
		Value:   value,
		Message: message,
	}
}

// IsSchemaError reports whether the error is a SchemaError.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// IsConfigError reports whether the error is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsLinkError reports whether the error is a LinkError.
func IsLinkError(err error) bool {
	var linkErr *LinkError
	return errors.As(err, &linkErr)
}

// IsGenerationError reports whether the error is a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}

// IsValidationError reports whether the error is a ValidationError.
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
