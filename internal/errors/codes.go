// Package errors provides structured error handling for Carrel.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration and workspace errors
//   - 2XX: Storage errors (SQLite, index)
//   - 3XX: Provider errors (embedding, reranker servers)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration and workspace errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates database and index errors.
	CategoryStorage Category = "STORAGE"
	// CategoryProvider indicates embedding or reranker provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
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
	// Config and workspace errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeWorkspaceLocked  = "ERR_103_WORKSPACE_LOCKED"
	ErrCodeWorkspaceMissing = "ERR_104_WORKSPACE_MISSING"

	// Storage errors (200-299)
	ErrCodeStoreOpen       = "ERR_201_STORE_OPEN"
	ErrCodeStoreCorrupt    = "ERR_202_STORE_CORRUPT"
	ErrCodeStoreMigration  = "ERR_203_STORE_MIGRATION"
	ErrCodeStoreQuery      = "ERR_204_STORE_QUERY"
	ErrCodeExportFailed    = "ERR_205_EXPORT_FAILED"
	ErrCodeDiskFull        = "ERR_206_DISK_FULL"

	// Provider errors (300-399)
	ErrCodeProviderTimeout     = "ERR_301_PROVIDER_TIMEOUT"
	ErrCodeProviderUnavailable = "ERR_302_PROVIDER_UNAVAILABLE"
	ErrCodeEmbeddingFailed     = "ERR_303_EMBEDDING_FAILED"
	ErrCodeRerankFailed        = "ERR_304_RERANK_FAILED"
	ErrCodeModelDiscovery      = "ERR_305_MODEL_DISCOVERY"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"
	ErrCodeChunkTooShort     = "ERR_404_CHUNK_TOO_SHORT"

	// Internal errors (500-599)
	ErrCodeInternal           = "ERR_501_INTERNAL"
	ErrCodeSearchFailed       = "ERR_502_SEARCH_FAILED"
	ErrCodeCalibrationAnomaly = "ERR_503_CALIBRATION_ANOMALY"
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
		return CategoryStorage
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreCorrupt, ErrCodeDiskFull:
		return SeverityFatal
	}

	// Retryable provider errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderTimeout, ErrCodeProviderUnavailable:
		return true
	default:
		return false
	}
}
