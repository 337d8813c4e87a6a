package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"

	// Job specific errors
	ErrJobNotFound       ErrorCode = "JOB_NOT_FOUND"
	ErrDocumentNotFound  ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrRateLimited       ErrorCode = "RATE_LIMITED"
	ErrActivationTimeout ErrorCode = "ACTIVATION_TIMEOUT"
	ErrGenerationFailure ErrorCode = "GENERATION_FAILURE"
	ErrConflict          ErrorCode = "CONFLICT"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(ErrNotFound, message, nil)
}

func NewValidationError(message string) *DomainError {
	return NewError(ErrInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(ErrInternal, message, err)
}

func NewForbiddenError(message string) *DomainError {
	return NewError(ErrForbidden, message, nil)
}

func NewJobNotFoundError(jobID string) *DomainError {
	return NewError(ErrJobNotFound, fmt.Sprintf("Job not found with ID: %s", jobID), nil)
}

func NewDocumentNotFoundError(documentID string) *DomainError {
	return NewError(ErrDocumentNotFound, fmt.Sprintf("Document not found with ID: %s", documentID), nil)
}

func NewRateLimitedError(message string) *DomainError {
	return NewError(ErrRateLimited, message, nil)
}

func NewGenerationFailureError(err error) *DomainError {
	return NewError(ErrGenerationFailure, "Question generation failed", err)
}

// ErrConcurrencyConflict signals that an atomic update affected zero rows
// because another transition won the race. It is resolved internally
// (the loser becomes a no-op) and never surfaces to API callers.
var ErrConcurrencyConflict = errors.New("concurrent update lost the race")

// IsConcurrencyConflict reports whether err is a lost-race signal.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
