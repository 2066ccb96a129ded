package domain

import "fmt"

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

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
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

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery      = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidStrategy = NewDomainError(ErrCodeValidation, "invalid search strategy")
	ErrInvalidIndex    = NewDomainError(ErrCodeValidation, "index artifact is invalid")
)

// Retrieval outcomes. ErrNoRelevantResult and ErrLowConfidence are expected
// results, not failures: callers decide what to say to the user.
var (
	ErrNoRelevantResult = NewDomainError(ErrCodeNotFound, "no relevant result")
	ErrLowConfidence    = NewDomainError(ErrCodeNotFound, "best semantic match below confidence threshold")
)

// Index lifecycle errors
var (
	ErrIndexNotBuilt        = NewDomainError(ErrCodeUnavailable, "index not built")
	ErrSemanticUnavailable  = NewDomainError(ErrCodeUnavailable, "semantic search unavailable")
	ErrSourceDirMissing     = NewDomainError(ErrCodeNotFound, "source directory not found")
	ErrNoDocuments          = NewDomainError(ErrCodeNotFound, "no text documents found")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
