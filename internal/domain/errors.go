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
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeFetch             = "FETCH_ERROR"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeNoContent         = "NO_CONTENT"
	ErrCodeEmbedding         = "EMBEDDING_ERROR"
	ErrCodeStore             = "STORE_ERROR"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery  = NewDomainError(ErrCodeValidation, "query must not be empty")
	ErrEmptyDocID  = NewDomainError(ErrCodeValidation, "doc_id must not be empty")
	ErrEmptyFolder = NewDomainError(ErrCodeValidation, "folder path must not be empty")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
)

// FetchError wraps a failure to read or download source bytes.
func FetchError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeFetch, message, err)
}

// UnsupportedFormatError reports an extension or MIME type the converter
// cannot handle.
func UnsupportedFormatError(message string) *DomainError {
	return NewDomainError(ErrCodeUnsupportedFormat, message)
}

// NoContentError reports that conversion or chunking produced no usable text.
func NoContentError(message string) *DomainError {
	return NewDomainError(ErrCodeNoContent, message)
}

// EmbeddingError wraps an embedding model failure.
func EmbeddingError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, message, err)
}

// StoreError wraps a persistence or query failure.
func StoreError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStore, message, err)
}

// ValidationError reports malformed caller input.
func ValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// ErrorCode extracts the domain error code from err, or INTERNAL_ERROR when
// err is not a DomainError.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}
