package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the structured error type for fttf.
// It carries enough context for logging, CLI presentation and MCP mapping.
type AppError struct {
	// Code is the unique error code (e.g., "ERR_402_INVALID_TASK_PARAMS").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, ...).
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
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AppError from an existing error.
// The error's message becomes the AppError message.
func Wrap(code string, err error) *AppError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks. Only Code is compared.
var (
	ErrNotReady       = &AppError{Code: ErrCodeNotReady}
	ErrNotFound       = &AppError{Code: ErrCodeNotFound}
	ErrValidation     = &AppError{Code: ErrCodeInvalidInput}
	ErrInvalidParams  = &AppError{Code: ErrCodeInvalidTaskParams}
	ErrInvalidLevel   = &AppError{Code: ErrCodeInvalidLevel}
	ErrUnknownTask    = &AppError{Code: ErrCodeUnknownTaskType}
	ErrUnknownMethod  = &AppError{Code: ErrCodeUnknownMethod}
	ErrMigration      = &AppError{Code: ErrCodeMigrationFailed}
	ErrDatabaseLocked = &AppError{Code: ErrCodeDatabaseLocked}
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AppError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a storage-related error.
func IOError(message string, cause error) *AppError {
	return New(ErrCodeDatabaseOpen, message, cause)
}

// NetworkError creates a network-related error.
// Network errors are typically retryable.
func NetworkError(message string, cause error) *AppError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AppError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InvalidParamsError reports task params that failed their schema.
func InvalidParamsError(taskType string, cause error) *AppError {
	msg := fmt.Sprintf("invalid params for task %q", taskType)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return New(ErrCodeInvalidTaskParams, msg, cause).WithDetail("task_type", taskType)
}

// NotReadyError reports a call made before the backend finished opening.
func NotReadyError(message string, cause error) *AppError {
	return New(ErrCodeNotReady, message, cause).
		WithSuggestion("Wait for initialization to finish or check 'fttf status'.")
}

// NotFoundError reports a lookup miss for kind with the given key.
func NotFoundError(kind, key string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", kind, key), nil).
		WithDetail("kind", kind)
}

// MigrationError reports a migration that stopped the schema upgrade.
func MigrationError(version int, cause error) *AppError {
	return New(ErrCodeMigrationFailed, fmt.Sprintf("migration %d failed", version), cause).
		WithDetail("version", fmt.Sprint(version)).
		WithSuggestion("Fix the failing migration and run 'fttf migrate' again; applied versions are kept.")
}

// TaskError reports a task handler failure.
func TaskError(taskType string, cause error) *AppError {
	return New(ErrCodeTaskFailed, fmt.Sprintf("task %s failed", taskType), cause).
		WithDetail("task_type", taskType)
}

// EmbeddingError reports a failure of the embedding backend.
func EmbeddingError(message string, cause error) *AppError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AppError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if any AppError in the chain has the Retryable flag set.
func IsRetryable(err error) bool {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AppError.
// Returns empty string if not an AppError.
func GetCode(err error) string {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AppError.
// Returns empty string if not an AppError.
func GetCategory(err error) Category {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
