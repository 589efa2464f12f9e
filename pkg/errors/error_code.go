package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidStrength      ErrorCode = 102
	ErrCodeInvalidConfidence    ErrorCode = 103
	ErrCodeInsufficientData     ErrorCode = 104
	ErrCodeInvalidThreshold     ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106
	ErrCodeInvalidType          ErrorCode = 107

	// Signal errors (200-299)
	ErrCodeGeneratorNotFound      ErrorCode = 200
	ErrCodeGeneratorAlreadyExists ErrorCode = 201
	ErrCodeSignalComputation      ErrorCode = 202
	ErrCodeCompositeEmpty         ErrorCode = 203

	// Collector errors (300-399)
	ErrCodeCollectorConnect   ErrorCode = 300
	ErrCodeCollectorStream    ErrorCode = 301
	ErrCodeCollectorParse     ErrorCode = 302
	ErrCodeBackfillFailed     ErrorCode = 303
	ErrCodeCollectorStopped   ErrorCode = 304
	ErrCodeReconnectExhausted ErrorCode = 305

	// Store errors (400-499)
	ErrCodeStoreUnavailable ErrorCode = 400
	ErrCodeQueryFailed      ErrorCode = 401
	ErrCodeWriteFailed      ErrorCode = 402
	ErrCodeDataNotFound     ErrorCode = 403

	// Filter/orchestrator errors (500-599)
	ErrCodeFilterConfig       ErrorCode = 500
	ErrCodeOrchestratorClosed ErrorCode = 501
	ErrCodeCacheStale         ErrorCode = 502
)
