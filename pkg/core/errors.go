package core

import (
	"context"
	"errors"
	"fmt"
)

// Error codes. These are the failure kinds a run can report.
const (
	CodeFixtureNotFound   = "fixture_not_found"
	CodeFixtureMalformed  = "fixture_malformed"
	CodeElementNotFound   = "element_not_found"
	CodeNavigationTimeout = "navigation_timeout"
	CodeAssertionMismatch = "assertion_mismatch"
	CodeRunTimeout        = "run_timeout"
	CodeInvalidConfig     = "invalid_config"
	CodeMissingRequired   = "missing_required"
	CodeDriverFailure     = "driver_failure"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, run_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code, so
// errors.Is(err, ErrElementNotFound) holds for every derived copy.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Fixture errors
	ErrFixtureNotFound = &ExecutionError{
		Category: ErrCategoryFixture,
		Code:     CodeFixtureNotFound,
		Message:  "fixture not found",
	}
	ErrFixtureMalformed = &ExecutionError{
		Category: ErrCategoryFixture,
		Code:     CodeFixtureMalformed,
		Message:  "fixture is not a flat string mapping",
	}

	// Assertion errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     CodeElementNotFound,
		Message:  "element not found",
	}
	ErrAssertionMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     CodeAssertionMismatch,
		Message:  "text does not match expected value",
	}

	// Timeout errors
	ErrNavigationTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     CodeNavigationTimeout,
		Message:  "page did not become ready",
	}
	ErrRunTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     CodeRunTimeout,
		Message:  "run timed out",
	}

	// Connection errors
	ErrDriverFailure = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     CodeDriverFailure,
		Message:  "browser driver failure",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     CodeInvalidConfig,
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     CodeMissingRequired,
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CodeOf returns the error code carried by err, or "" if err is not an
// ExecutionError. Context errors map to run_timeout.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CodeRunTimeout
	}
	return ""
}

// CategoryOf returns the category carried by err.
func CategoryOf(err error) ErrorCategory {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrCategoryTimeout
	}
	if err != nil {
		return ErrCategoryConnection
	}
	return ErrCategoryNone
}
