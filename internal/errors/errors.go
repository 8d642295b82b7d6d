// Package errors provides the error taxonomy for catalogue parsing and
// cross-referencing. Typed errors carry enough context (catalogue, line,
// field) for callers to decide between skip-and-warn and abort.
package errors

import (
	"errors"
	"fmt"
)

// Aliases for the standard library so callers only import one errors package.
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Sentinel errors
var (
	// ErrSchema indicates a column table that does not describe the record width
	ErrSchema = errors.New("schema error")

	// ErrParse indicates a single line that could not be decoded
	ErrParse = errors.New("parse error")

	// ErrNotFound indicates that a requested entry or system was not found
	ErrNotFound = errors.New("not found")

	// ErrIncompatibleUnits indicates arithmetic or conversion across dimensions
	ErrIncompatibleUnits = errors.New("incompatible units")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")
)

// SchemaError is fatal for a catalogue: no line is parsed after it.
type SchemaError struct {
	Catalogue string
	Message   string
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in %s: %s", e.Catalogue, e.Message)
}

// Is implements errors.Is support
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// NewSchemaError creates a new SchemaError
func NewSchemaError(catalogue, format string, args ...any) *SchemaError {
	return &SchemaError{Catalogue: catalogue, Message: fmt.Sprintf(format, args...)}
}

// ParseError reports a line that failed conversion or a field pattern.
type ParseError struct {
	Catalogue string
	Line      int
	Field     string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s line %d: field %s: %s", e.Catalogue, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s line %d: %s", e.Catalogue, e.Line, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewParseError creates a new ParseError
func NewParseError(catalogue string, line int, field string, err error) *ParseError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{
		Catalogue: catalogue,
		Line:      line,
		Field:     field,
		Message:   message,
		Err:       err,
	}
}

// UnitError represents a conversion between units of different dimensions
type UnitError struct {
	From string
	To   string
}

// Error implements the error interface
func (e *UnitError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.From, e.To)
}

// Is implements errors.Is support
func (e *UnitError) Is(target error) bool {
	return target == ErrIncompatibleUnits
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// APIError represents a non-success response from a remote service
type APIError struct {
	Service    string
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
}

// Temporary reports whether retrying the request may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string
	Path      string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Operation: operation, Path: path, Err: err}
}

// IsSchema checks if an error is a schema error
func IsSchema(err error) bool {
	return errors.Is(err, ErrSchema)
}

// IsParse checks if an error is a line parse error
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
