package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists indicates that an entity with the same key was already stored.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNoIdentifier indicates that no usable publication identifier could be resolved.
	ErrNoIdentifier = errors.New("no identifier")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDownloadFailed indicates that a candidate could not be fetched.
	ErrDownloadFailed = errors.New("download failed")

	// ErrValidationFailed indicates that fetched content is not the expected artifact.
	ErrValidationFailed = errors.New("validation failed")

	// ErrAdapterCrash indicates that a source adapter panicked.
	ErrAdapterCrash = errors.New("adapter crashed")

	// ErrSessionDeadline indicates that the acquisition session ran out of time.
	ErrSessionDeadline = errors.New("session deadline exceeded")

	// ErrSSRF indicates that a URL resolves to a private or reserved network address.
	ErrSSRF = errors.New("URL resolves to private or reserved network address")
)

// IdentifierError reports that no usable identifier could be resolved.
type IdentifierError struct {
	Reason string
}

// Error implements the error interface.
func (e *IdentifierError) Error() string {
	return fmt.Sprintf("identifier error: %s", e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *IdentifierError) Unwrap() error {
	return ErrNoIdentifier
}

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// DownloadError reports a failed fetch of a candidate URL.
type DownloadError struct {
	Source     SourceName
	URL        string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("download from %s failed", e.Source)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns both the sentinel and the cause so either can be matched.
func (e *DownloadError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDownloadFailed}
	}
	return []error{ErrDownloadFailed, e.Cause}
}

// ValidationFailure reports content that failed validation.
type ValidationFailure struct {
	Source SourceName
	Reason string
	Kind   ContentKind
}

// Error implements the error interface.
func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("content from %s rejected: %s", e.Source, e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationFailure) Unwrap() error {
	return ErrValidationFailed
}

// AdapterCrashError wraps a value recovered from a panicking adapter.
type AdapterCrashError struct {
	Source SourceName
	Value  any
}

// Error implements the error interface.
func (e *AdapterCrashError) Error() string {
	return fmt.Sprintf("adapter %s panicked: %v", e.Source, e.Value)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AdapterCrashError) Unwrap() error {
	return ErrAdapterCrash
}

// NewIdentifierError creates a new IdentifierError.
func NewIdentifierError(reason string) *IdentifierError {
	return &IdentifierError{Reason: reason}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
