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
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeUnsupportedConfig = "UNSUPPORTED_CONFIGURATION"
	ErrCodeUpstreamFailure   = "UPSTREAM_FAILURE"
	ErrCodeIndexDesync       = "INDEX_DESYNC"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInvalidOperation  = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "search query cannot be empty")
	ErrInvalidTopK          = NewDomainError(ErrCodeValidation, "topK must be greater than 0")
	ErrEmptyContent         = NewDomainError(ErrCodeValidation, "content cannot be empty")
	ErrInvalidSourceType    = NewDomainError(ErrCodeValidation, "invalid knowledge source type")
	ErrEmptyFile            = NewDomainError(ErrCodeValidation, "file is empty or contains no extractable text")
	ErrMissingExtension     = NewDomainError(ErrCodeValidation, "file must have a valid extension")
	ErrUnsupportedFormat    = NewDomainError(ErrCodeValidation, "unsupported file format")
	ErrFileTooLarge         = NewDomainError(ErrCodeValidation, "extracted text exceeds the size limit")
)

// Not found errors. Ownership mismatches are deliberately reported as
// NOT_FOUND rather than a forbidden error so that agents cannot probe
// for the existence of other agents' resources.
var (
	ErrAgentNotFound        = NewDomainError(ErrCodeNotFound, "agent not found")
	ErrKnowledgeNotFound    = NewDomainError(ErrCodeNotFound, "knowledge source not found")
	ErrChunkNotFound        = NewDomainError(ErrCodeNotFound, "knowledge chunk not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
)

// Configuration errors
var (
	ErrUnsupportedProvider  = NewDomainError(ErrCodeUnsupportedConfig, "unsupported provider")
	ErrUnsupportedDimension = NewDomainError(ErrCodeUnsupportedConfig, "unsupported embedding dimension")
	ErrNoDefaultProfile     = NewDomainError(ErrCodeUnsupportedConfig, "no default chunking profile configured")
)

// Upstream provider errors (retryable)
var (
	ErrEmbeddingFailed = NewDomainError(ErrCodeUpstreamFailure, "embedding provider call failed")
	ErrChatFailed      = NewDomainError(ErrCodeUpstreamFailure, "chat provider call failed")
)

// Already exists errors
var (
	ErrAgentAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "agent already exists")
	ErrChunkOrderTaken    = NewDomainError(ErrCodeAlreadyExists, "chunk order already allocated for knowledge source")
)
