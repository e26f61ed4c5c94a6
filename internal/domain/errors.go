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
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodePersistence      = "PERSISTENCE_ERROR"
	ErrCodeTimeout          = "TIMEOUT_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidJobStatus     = NewDomainError(ErrCodeValidation, "invalid ingestion job status")
	ErrInvalidStrategy      = NewDomainError(ErrCodeValidation, "invalid ingestion strategy")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrJobNotFound      = NewDomainError(ErrCodeNotFound, "ingestion job not found")
)

// Operation errors
var (
	ErrActiveJobExists  = NewDomainError(ErrCodeAlreadyExists, "document already has an active ingestion job")
	ErrJobTerminal      = NewDomainError(ErrCodeInvalidOperation, "ingestion job is in a terminal state")
	ErrRetriesExhausted = NewDomainError(ErrCodeInvalidOperation, "ingestion job has no retries left")
	ErrEmptyParseResult = NewDomainError(ErrCodeProvider, "parsing provider returned an empty result")
	ErrStorageOperation = NewDomainError(ErrCodeInternalError, "storage operation failed")
	ErrJobStuck         = NewDomainError(ErrCodeTimeout, "ingestion job exceeded processing time limit")
)
