// Package errors provides structured error handling for Segmenta.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Catalog errors (load, schema, snapshot)
//   - 3XX: Upstream errors (embedding provider, clusterer, NLP model)
//   - 4XX: Validation and session errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryCatalog indicates catalog load and snapshot errors.
	CategoryCatalog Category = "CATALOG"
	// CategoryUpstream indicates external provider errors.
	CategoryUpstream Category = "UPSTREAM"
	// CategoryValidation indicates input validation and session errors.
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
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Catalog errors (200-299)
	ErrCodeCatalogNotFound    = "ERR_201_CATALOG_NOT_FOUND"
	ErrCodeCatalogSchema      = "ERR_202_CATALOG_SCHEMA"
	ErrCodeCatalogEmpty       = "ERR_203_CATALOG_EMPTY"
	ErrCodeEmbeddingsCorrupt  = "ERR_204_EMBEDDINGS_CORRUPT"
	ErrCodeSnapshotUnavailable = "ERR_205_SNAPSHOT_UNAVAILABLE"

	// Upstream errors (300-399)
	ErrCodeUpstreamTimeout     = "ERR_301_UPSTREAM_TIMEOUT"
	ErrCodeUpstreamUnavailable = "ERR_302_UPSTREAM_UNAVAILABLE"
	ErrCodeEmbeddingFailed     = "ERR_303_EMBEDDING_FAILED"
	ErrCodeClusteringFailed    = "ERR_304_CLUSTERING_FAILED"

	// Validation and session errors (400-499)
	ErrCodeInvalidQuery        = "ERR_401_INVALID_QUERY"
	ErrCodeQueryEmpty          = "ERR_402_QUERY_EMPTY"
	ErrCodeInvalidTopK         = "ERR_403_INVALID_TOP_K"
	ErrCodeNotFound            = "ERR_404_NOT_FOUND"
	ErrCodeInvalidSessionState = "ERR_405_INVALID_SESSION_STATE"
	ErrCodeSessionNotFound     = "ERR_406_SESSION_NOT_FOUND"
	ErrCodeSessionLimit        = "ERR_407_SESSION_LIMIT"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeTimeout      = "ERR_503_TIMEOUT"
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
		return CategoryCatalog
	case '3':
		return CategoryUpstream
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCatalogNotFound, ErrCodeCatalogSchema, ErrCodeCatalogEmpty:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Snapshot unavailability is the only retryable condition surfaced to callers.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeUpstreamTimeout, ErrCodeUpstreamUnavailable, ErrCodeSnapshotUnavailable:
		return true
	default:
		return false
	}
}
