// Package errors provides structured error handling for fttf.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage and file IO errors
//   - 3XX: Network errors (embedding backends)
//   - 4XX: Validation errors
//   - 5XX: Internal errors (migrations, tasks, search)
//   - 6XX: State errors (readiness, lookup misses)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates database, file and disk errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input rejected before any mutation.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryState indicates the system is not in a state to serve the call.
	CategoryState Category = "STATE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeDatabaseOpen   = "ERR_201_DATABASE_OPEN"
	ErrCodeDatabaseLocked = "ERR_202_DATABASE_LOCKED"
	ErrCodeFileNotFound   = "ERR_203_FILE_NOT_FOUND"
	ErrCodeExportFailed   = "ERR_204_EXPORT_FAILED"
	ErrCodeImportFailed   = "ERR_205_IMPORT_FAILED"
	ErrCodeCorruptDB      = "ERR_206_CORRUPT_DATABASE"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidTaskParams = "ERR_402_INVALID_TASK_PARAMS"
	ErrCodeInvalidLevel      = "ERR_403_INVALID_LEVEL"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidURL        = "ERR_405_INVALID_URL"
	ErrCodeDimensionMismatch = "ERR_406_DIMENSION_MISMATCH"
	ErrCodeUnknownTaskType   = "ERR_407_UNKNOWN_TASK_TYPE"
	ErrCodeUnknownMethod     = "ERR_408_UNKNOWN_METHOD"
	ErrCodeInvalidMigration  = "ERR_409_INVALID_MIGRATION"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
	ErrCodeMigrationFailed = "ERR_504_MIGRATION_FAILED"
	ErrCodeTaskFailed      = "ERR_505_TASK_FAILED"

	// State errors (600-699)
	ErrCodeNotReady = "ERR_601_NOT_READY"
	ErrCodeNotFound = "ERR_602_NOT_FOUND"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	case '6':
		return CategoryState
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptDB, ErrCodeMigrationFailed, ErrCodeDatabaseLocked:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Task failures are never retryable; they stay failed until requeued by hand.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeNotReady:
		return true
	default:
		return false
	}
}
