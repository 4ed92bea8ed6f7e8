package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents invalid requests the user must correct (400)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeAuthentication represents a missing or expired session (401)
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeQuotaExceeded represents an exhausted credit allotment (403)
	ErrorTypeQuotaExceeded ErrorType = "quota_exceeded"
	// ErrorTypeNotFound represents resource not found errors (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents a request racing another on the same resource (409)
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeRateLimit represents rate limiting errors (429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeUpstream represents a failed generation backend call (502)
	ErrorTypeUpstream ErrorType = "upstream"
	// ErrorTypeExtraction represents a failed transcript extraction (502)
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeBackendUnavailable represents an unreachable generation backend (503)
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"
	// ErrorTypePersistence represents store failures (500)
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`

	// Set only for quota errors so clients can render upgrade prompts.
	Remaining int `json:"remaining,omitzero"`
	Limit     int `json:"limit,omitzero"`

	// Per output type failure messages for upstream errors.
	Failed map[OutputType]string `json:"failed,omitzero"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeQuotaExceeded:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeUpstream, ErrorTypeExtraction:
		return http.StatusBadGateway
	case ErrorTypeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewUnauthenticatedError creates an authentication error
func NewUnauthenticatedError() *AppError {
	return &AppError{
		Type:       ErrorTypeAuthentication,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}
}

// NewQuotaExceededError creates a quota error carrying the caller's remaining and limit
func NewQuotaExceededError(remaining, limit int) *AppError {
	return &AppError{
		Type:       ErrorTypeQuotaExceeded,
		Message:    "Credit limit reached. Upgrade your plan for more generations.",
		Code:       "QUOTA_EXCEEDED",
		StatusCode: http.StatusForbidden,
		Remaining:  remaining,
		Limit:      limit,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    message,
		Code:       "CONFLICT",
		StatusCode: http.StatusConflict,
		Retryable:  true,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Message:    fmt.Sprintf("rate limit exceeded: %s", limit),
		Code:       "RATE_LIMIT_EXCEEDED",
		StatusCode: http.StatusTooManyRequests,
		Retryable:  true,
	}
}

// NewUpstreamError creates an error for generation calls that all failed
func NewUpstreamError(failed map[OutputType]string, cause error) *AppError {
	types := make([]string, 0, len(failed))
	for _, t := range AllOutputTypes() {
		if _, ok := failed[t]; ok {
			types = append(types, string(t))
		}
	}
	for t := range failed {
		if !t.Known() {
			types = append(types, string(t))
		}
	}
	return &AppError{
		Type:       ErrorTypeUpstream,
		Message:    fmt.Sprintf("generation failed for: %s", strings.Join(types, ", ")),
		Code:       "UPSTREAM_ERROR",
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
		Failed:     failed,
	}
}

// NewExtractionError creates a transcript extraction error
func NewExtractionError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExtraction,
		Message:    "failed to extract transcript from source URL",
		Code:       "EXTRACTION_ERROR",
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewBackendUnavailableError creates an error for an unreachable generation backend
func NewBackendUnavailableError(backend string) *AppError {
	return &AppError{
		Type:       ErrorTypeBackendUnavailable,
		Message:    fmt.Sprintf("generation backend %s is currently unavailable", backend),
		Code:       "BACKEND_UNAVAILABLE",
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
	}
}

// NewPersistenceError creates a store failure error; the message is opaque to clients
func NewPersistenceError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypePersistence,
		Message:    "internal server error",
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    "internal server error",
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:       appErr.Type,
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
			Remaining:  appErr.Remaining,
			Limit:      appErr.Limit,
			Failed:     appErr.Failed,
		}
	}

	return NewInternalError("an unexpected error occurred", err)
}
