// Package errors provides structured error types for tractstory.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the pipeline and serve mode
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - DATASET_* / SUMMARY_*: Problems with the loaded census data
//   - NETWORK_* / TIMEOUT: Fetch failures
//   - RENDER_* / INTERNAL_*: Failures inside the rendering boundary
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidStep, "unknown step %q", name)
//	if errors.Is(err, errors.ErrCodeInvalidStep) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"
	ErrCodeInvalidStep    Code = "INVALID_STEP"
	ErrCodeInvalidSource  Code = "INVALID_SOURCE"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidDataset Code = "INVALID_DATASET"

	// Dataset errors
	ErrCodeDatasetUnavailable Code = "DATASET_UNAVAILABLE"
	ErrCodeSummaryMismatch    Code = "SUMMARY_MISMATCH"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeFileNotFound    Code = "FILE_NOT_FOUND"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Rendering and internal errors
	ErrCodeRenderFailed Code = "RENDER_FAILED"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
	ErrCodeUnsupported  Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// FieldMismatch describes one aggregate that disagrees with its reference value.
type FieldMismatch struct {
	Area  string
	Field string
	Got   float64
	Want  float64
}

// MismatchError lists every aggregate that failed validation.
type MismatchError struct {
	Fields []FieldMismatch
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	if len(e.Fields) == 1 {
		f := e.Fields[0]
		return fmt.Sprintf("%s %s = %g, want %g", f.Area, f.Field, f.Got, f.Want)
	}
	return fmt.Sprintf("%d summary fields disagree with reference values", len(e.Fields))
}

// Code returns the error code for this error type.
func (e *MismatchError) Code() Code {
	return ErrCodeSummaryMismatch
}
