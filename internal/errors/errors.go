package errors

import (
	"fmt"
)

// SegError is the structured error type for Segmenta.
// It provides rich context for error handling, logging, and HTTP mapping.
type SegError struct {
	// Code is the unique error code (e.g., "ERR_401_INVALID_QUERY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Catalog, Upstream, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *SegError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SegError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SegError.
func (e *SegError) Is(target error) bool {
	if t, ok := target.(*SegError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SegError) WithDetail(key, value string) *SegError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SegError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SegError {
	return &SegError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SegError from an existing error.
// The error's message becomes the SegError message.
func Wrap(code string, err error) *SegError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidQuery creates a query validation error.
func InvalidQuery(message string) *SegError {
	return New(ErrCodeInvalidQuery, message, nil)
}

// EmptyQuery creates the error for blank query text.
func EmptyQuery() *SegError {
	return New(ErrCodeQueryEmpty, "query must not be empty", nil)
}

// NotFound creates a lookup-miss error for a variable code.
func NotFound(code string) *SegError {
	return New(ErrCodeNotFound, fmt.Sprintf("variable %q not found", code), nil)
}

// InvalidSessionState creates the error for a disallowed session transition.
func InvalidSessionState(state, event string) *SegError {
	return New(ErrCodeInvalidSessionState,
		fmt.Sprintf("event %q not permitted in state %q", event, state), nil)
}

// SessionNotFound creates the error for an unknown or evicted session.
func SessionNotFound(id string) *SegError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("session %q not found", id), nil)
}

// ServiceUnavailable creates the error for missing or mid-swap catalog state.
func ServiceUnavailable(message string) *SegError {
	return New(ErrCodeSnapshotUnavailable, message, nil)
}

// CatalogError creates a fatal catalog load error.
func CatalogError(message string, cause error) *SegError {
	return New(ErrCodeCatalogSchema, message, cause)
}

// UpstreamError creates an external-provider error.
// Upstream errors are typically retryable.
func UpstreamError(message string, cause error) *SegError {
	return New(ErrCodeUpstreamUnavailable, message, cause)
}

// Timeout creates a deadline-exceeded error.
func Timeout(message string) *SegError {
	return New(ErrCodeTimeout, message, nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SegError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a SegError with Retryable flag set.
func IsRetryable(err error) bool {
	if se, ok := err.(*SegError); ok {
		return se.Retryable
	}
	return false
}

// GetCode extracts the code from a SegError.
// Returns ErrCodeInternal for non-SegError values.
func GetCode(err error) string {
	if se, ok := err.(*SegError); ok {
		return se.Code
	}
	return ErrCodeInternal
}

// GetCategory extracts the category from a SegError.
// Returns empty string if not a SegError.
func GetCategory(err error) Category {
	if se, ok := err.(*SegError); ok {
		return se.Category
	}
	return ""
}
