// Package errors defines structured error types for the record store.
package errors

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Code defines specific error types for the record store.
type Code string

const (
	// CodeInitializationFailed is returned when the persistence layer cannot be reached.
	CodeInitializationFailed Code = "INITIALIZATION_FAILED"
	// CodeNotInitialized is returned when an operation runs before initialization.
	CodeNotInitialized Code = "NOT_INITIALIZED"
	// CodeValidationFailed is returned when a record violates its source rules.
	CodeValidationFailed Code = "VALIDATION_FAILED"
	// CodeDuplicateKey is returned when adding a record whose key already exists.
	CodeDuplicateKey Code = "DUPLICATE_KEY"
	// CodeNotFound is returned when a record does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeStoreNotFound is returned for an undeclared source identifier.
	CodeStoreNotFound Code = "STORE_NOT_FOUND"
	// CodeImportPartial is returned when some rows were skipped during an import.
	CodeImportPartial Code = "IMPORT_PARTIAL"
	// CodeUnsupportedFormat is returned for an unknown import/export format.
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	// CodeStorage is returned when a durable storage operation fails.
	CodeStorage Code = "STORAGE_ERROR"
)

// Sentinels usable with errors.Is. Any *Error matches the sentinel with the same code.
var (
	ErrInitialization    = &Error{code: CodeInitializationFailed, message: "initialization failed"}
	ErrNotInitialized    = &Error{code: CodeNotInitialized, message: "store not initialized"}
	ErrValidation        = &Error{code: CodeValidationFailed, message: "validation failed"}
	ErrDuplicateKey      = &Error{code: CodeDuplicateKey, message: "duplicate key"}
	ErrNotFound          = &Error{code: CodeNotFound, message: "record not found"}
	ErrStoreNotFound     = &Error{code: CodeStoreNotFound, message: "store not found"}
	ErrImportPartial     = &Error{code: CodeImportPartial, message: "import partially failed"}
	ErrUnsupportedFormat = &Error{code: CodeUnsupportedFormat, message: "unsupported format"}
	ErrStorage           = &Error{code: CodeStorage, message: "storage error"}
)

// Coded is implemented by every error of this package.
type Coded interface {
	error
	Code() Code
}

// Error is a concrete error type with a code, the source and key involved, and optional
// details.
type Error struct {
	code       Code
	source     string
	key        string
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// WithSource records the source identifier involved.
func (e *Error) WithSource(source string) *Error {
	e.source = source
	return e
}

// WithKey records the primary key involved.
func (e *Error) WithKey(key string) *Error {
	e.key = key
	return e
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.message
	if e.source != "" {
		msg = fmt.Sprintf("%s: %s", e.source, msg)
	}
	if e.key != "" {
		msg = fmt.Sprintf("%s %q", msg, e.key)
	}
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", msg, e.wrappedErr)
	}
	return msg
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Source returns the source identifier, if any.
func (e *Error) Source() string {
	return e.source
}

// Key returns the primary key, if any.
func (e *Error) Key() string {
	return e.key
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// Is matches any error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(Coded)
	return ok && t.Code() == e.code
}

// Predefined error constructors for common cases

// Initialization creates an error for an unreachable persistence layer.
func Initialization(err error) *Error {
	return New(CodeInitializationFailed, "initialization failed").Wrap(err)
}

// NotInitialized creates an error for an operation attempted before initialization.
func NotInitialized() *Error {
	return New(CodeNotInitialized, "store not initialized")
}

// DuplicateKey creates an error for an add that would overwrite an existing record.
func DuplicateKey(source, key string) *Error {
	return New(CodeDuplicateKey, "duplicate key").WithSource(source).WithKey(key)
}

// NotFound creates an error for a missing record.
func NotFound(source, key string) *Error {
	return New(CodeNotFound, "record not found").WithSource(source).WithKey(key)
}

// StoreNotFound creates an error for an undeclared source.
func StoreNotFound(source string) *Error {
	return New(CodeStoreNotFound, "store not found").WithSource(source)
}

// UnsupportedFormat creates an error for an unknown transfer format.
func UnsupportedFormat(format string) *Error {
	return New(CodeUnsupportedFormat, fmt.Sprintf("unsupported format %q", format))
}

// Storage wraps a durable storage failure.
func Storage(source string, err error) *Error {
	return New(CodeStorage, "storage error").WithSource(source).Wrap(err)
}

// ValidationError lists every violated field of a record with the reasons.
type ValidationError struct {
	Source string
	Fields map[string][]string
}

// Add records a violation for field.
func (e *ValidationError) Add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], reason)
}

// Empty reports whether no violation was recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// FieldNames returns the violated fields, sorted.
func (e *ValidationError) FieldNames() []string {
	return slices.Sorted(maps.Keys(e.Fields))
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	b.WriteString("validation failed")
	for _, f := range e.FieldNames() {
		for _, r := range e.Fields[f] {
			b.WriteString("; ")
			b.WriteString(r)
		}
	}
	return b.String()
}

// Code implements Coded.
func (e *ValidationError) Code() Code {
	return CodeValidationFailed
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(Coded)
	return ok && t.Code() == CodeValidationFailed
}

// ImportWarning describes one row skipped during an import.
type ImportWarning struct {
	Row    int    `json:"row"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

// ImportPartialFailure reports rows skipped during an otherwise successful import.
type ImportPartialFailure struct {
	Source   string
	Imported int
	Warnings []ImportWarning
}

// Error implements the error interface.
func (e *ImportPartialFailure) Error() string {
	return fmt.Sprintf("%s: imported %d records, skipped %d", e.Source, e.Imported, len(e.Warnings))
}

// Code implements Coded.
func (e *ImportPartialFailure) Code() Code {
	return CodeImportPartial
}

// Is matches ErrImportPartial.
func (e *ImportPartialFailure) Is(target error) bool {
	t, ok := target.(Coded)
	return ok && t.Code() == CodeImportPartial
}
