package errors

import (
	"fmt"
)

// CarrelError is the structured error type for Carrel.
// It provides rich context for error handling, logging, and user presentation.
type CarrelError struct {
	// Code is the unique error code (e.g., "ERR_201_STORE_OPEN").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *CarrelError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CarrelError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with CarrelError.
func (e *CarrelError) Is(target error) bool {
	if t, ok := target.(*CarrelError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CarrelError) WithDetail(key, value string) *CarrelError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *CarrelError) WithSuggestion(suggestion string) *CarrelError {
	e.Suggestion = suggestion
	return e
}

// New creates a new CarrelError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *CarrelError {
	return &CarrelError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CarrelError from an existing error.
// The error's message becomes the CarrelError message.
func Wrap(code string, err error) *CarrelError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StorageError creates a storage-related error.
func StorageError(message string, cause error) *CarrelError {
	return New(ErrCodeStoreQuery, message, cause)
}

// ProviderError creates a provider-related error.
// Provider errors are typically retryable.
func ProviderError(message string, cause error) *CarrelError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *CarrelError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *CarrelError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a CarrelError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CarrelError); ok {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CarrelError); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a CarrelError.
// Returns empty string if not a CarrelError.
func GetCode(err error) string {
	if ce, ok := err.(*CarrelError); ok {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category from a CarrelError.
// Returns empty string if not a CarrelError.
func GetCategory(err error) Category {
	if ce, ok := err.(*CarrelError); ok {
		return ce.Category
	}
	return ""
}
