package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code, so that
// errors.Is(err, ErrEmbedding) matches every embedding failure.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeChunking          = "CHUNKING_ERROR"
	ErrCodeDimensionMismatch = "DIMENSION_MISMATCH"
	ErrCodeEmbedding         = "EMBEDDING_ERROR"
	ErrCodeIndexCorrupt      = "INDEX_CORRUPT"
	ErrCodeDocumentLoad      = "DOCUMENT_LOAD_ERROR"
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRequestTooLarge   = "REQUEST_TOO_LARGE"

	ErrCodeIndexNotFound       = "INDEX_NOT_FOUND"
	ErrCodeIngestJobNotFound   = "INGEST_JOB_NOT_FOUND"
	ErrCodeInsufficientResults = "INSUFFICIENT_RESULTS"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrInvalidParameter  = NewDomainError(ErrCodeValidation, "invalid parameter")
	ErrChunking          = NewDomainError(ErrCodeChunking, "chunking failed")
	ErrDimensionMismatch = NewDomainError(ErrCodeDimensionMismatch, "vector dimension mismatch")
	ErrEmbedding         = NewDomainError(ErrCodeEmbedding, "embedding provider failed")
	ErrIndexCorrupt      = NewDomainError(ErrCodeIndexCorrupt, "index is corrupt")
	ErrDocumentLoad      = NewDomainError(ErrCodeDocumentLoad, "document could not be loaded")
	ErrConfiguration     = NewDomainError(ErrCodeConfiguration, "invalid configuration")
)

// Not found errors. Each has its own code so errors.Is tells them apart;
// all of them map to 404.
var (
	ErrIndexNotFound       = NewDomainError(ErrCodeIndexNotFound, "index snapshot not found")
	ErrIngestJobNotFound   = NewDomainError(ErrCodeIngestJobNotFound, "ingest job not found")
	ErrInsufficientResults = NewDomainError(ErrCodeInsufficientResults, "no results above the minimum score")
)

// IsNotFound reports whether code denotes a missing resource.
func IsNotFound(code string) bool {
	switch code {
	case ErrCodeIndexNotFound, ErrCodeIngestJobNotFound, ErrCodeInsufficientResults:
		return true
	}
	return false
}

func InvalidParameterError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

func ChunkingError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeChunking, fmt.Sprintf(format, args...))
}

func DimensionMismatchError(expected, got int) *DomainError {
	return NewDomainError(ErrCodeDimensionMismatch,
		fmt.Sprintf("expected vector of dimension %d, got %d", expected, got))
}

// EmbeddingError wraps a provider failure. The cause is kept so callers can
// decide whether to retry.
func EmbeddingError(message string, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, message, cause)
}

func IndexCorruptError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeIndexCorrupt, fmt.Sprintf(format, args...))
}

func DocumentLoadError(path string, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeDocumentLoad, fmt.Sprintf("failed to load %s", path), cause)
}

// RequestTooLargeError reports a request body over the server's limit.
func RequestTooLargeError(limit int64) *DomainError {
	return NewDomainError(ErrCodeRequestTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
}

func ConfigurationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeConfiguration, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first DomainError in err's chain, or
// ErrCodeInternalError when there is none.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}
