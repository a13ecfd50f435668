// Package errors provides structured error types for the inspector.
// All errors include a category, code, message, and retryable flag so that
// callers can tell a missing store apart from a profile/schema mismatch.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the layer that raised them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidProfile = "INVALID_PROFILE"

	// Store codes
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeDownloadFailed   = "DOWNLOAD_FAILED"

	// Schema codes
	CodeUnknownTable      = "UNKNOWN_TABLE"
	CodeUnknownColumn     = "UNKNOWN_COLUMN"
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"

	// Query codes
	CodeMalformedQuery = "MALFORMED_QUERY"
	CodeEmptyPlan      = "EMPTY_PLAN"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Sentinels for errors.Is matching on category and code only.
var (
	ErrStoreUnavailable = New(ErrCategoryStore, CodeStoreUnavailable, "store unavailable")
	ErrUnknownTable     = New(ErrCategorySchema, CodeUnknownTable, "unknown table")
	ErrUnknownColumn    = New(ErrCategorySchema, CodeUnknownColumn, "unknown column")
	ErrMalformedQuery   = New(ErrCategoryQuery, CodeMalformedQuery, "malformed query")
)

// InspectError is the structured error type used throughout the inspector.
type InspectError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *InspectError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *InspectError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *InspectError) Is(target error) bool {
	var t *InspectError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new InspectError.
func New(category ErrorCategory, code, message string) *InspectError {
	return &InspectError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new InspectError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *InspectError {
	return &InspectError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *InspectError) WithDetails(details map[string]interface{}) *InspectError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ie *InspectError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an InspectError.
func GetCategory(err error) ErrorCategory {
	var ie *InspectError
	if errors.As(err, &ie) {
		return ie.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an InspectError.
func GetCode(err error) string {
	var ie *InspectError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// isRetryable reports whether an operation failing with this code may succeed
// on a later attempt. Only staging a remote store qualifies; queries against
// a static store fail the same way every time.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryStore && code == CodeDownloadFailed
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *InspectError {
	return New(ErrCategoryValidation, code, message)
}

func NewStoreError(code, message string, cause error) *InspectError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewSchemaError(code, message string) *InspectError {
	return New(ErrCategorySchema, code, message)
}

func NewQueryError(code, message string, cause error) *InspectError {
	return Wrap(ErrCategoryQuery, code, message, cause)
}

func NewInternalError(message string, cause error) *InspectError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
