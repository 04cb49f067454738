// Package errors provides structured error handling for docfuse.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, database)
//   - 3XX: Network errors (embedding backends)
//   - 4XX: Validation errors (parameters, vectors, queries)
//   - 5XX: Internal errors (index lifecycle)
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the current operation.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the operation; the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning means degraded operation (e.g. lexical-only search).
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeCorruptStore   = "ERR_205_CORRUPT_STORE"
	ErrCodeStoreLocked    = "ERR_207_STORE_LOCKED"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidParameter  = "ERR_401_INVALID_PARAMETER"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidPath       = "ERR_406_INVALID_PATH"
	ErrCodeCountMismatch     = "ERR_407_COUNT_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal           = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed    = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed       = "ERR_503_SEARCH_FAILED"
	ErrCodeChunkingFailed     = "ERR_504_CHUNKING_FAILED"
	ErrCodeIndexFailed        = "ERR_505_INDEX_FAILED"
	ErrCodeIndexNotReady      = "ERR_506_INDEX_NOT_READY"
	ErrCodeRegenerationFailed = "ERR_507_REGENERATION_FAILED"
)

// Sentinels for errors.Is. Matching is by code, so any FuseError carrying
// the same code satisfies errors.Is(err, ErrIndexNotReady).
var (
	ErrInvalidParameter  = &FuseError{Code: ErrCodeInvalidParameter}
	ErrDimensionMismatch = &FuseError{Code: ErrCodeDimensionMismatch}
	ErrCountMismatch     = &FuseError{Code: ErrCodeCountMismatch}
	ErrIndexNotReady     = &FuseError{Code: ErrCodeIndexNotReady}
	ErrQueryEmpty        = &FuseError{Code: ErrCodeQueryEmpty}
)

// categoryFromCode extracts category from the numeric part of the code.
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
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptStore:
		return SeverityFatal
	case ErrCodeRegenerationFailed:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeStoreLocked:
		return true
	default:
		return false
	}
}
