package domain

import (
	"errors"
	"fmt"
	"time"
)

// Workflow errors. None of them is fatal to a session: each has a defined
// degrade path (mild default, neutral signal, empty facility list).
var (
	ErrMissingInput          = errors.New("no questionnaire answers or image signal available")
	ErrCapabilityUnavailable = errors.New("image analysis capability unavailable")
	ErrLocatorUnavailable    = errors.New("facility locator unavailable")
	ErrSessionNotFound       = errors.New("session not found")
	ErrImageNotFound         = errors.New("image not found")
	ErrUnsupportedImage      = errors.New("unsupported image type")
	ErrImageTooLarge         = errors.New("image exceeds size limit")
	ErrStaleGeneration       = errors.New("session was cleared")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeImageNotFound    = "IMAGE_NOT_FOUND"
	ErrCodeNoFileUploaded   = "NO_FILE_UPLOADED"
	ErrCodeUnsupportedImage = "UNSUPPORTED_IMAGE"
	ErrCodeSessionCleared   = "SESSION_CLEARED"
	ErrCodeStorage          = "STORAGE_ERROR"
	ErrCodeLocator          = "LOCATOR_ERROR"
	ErrCodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer   = "INTERNAL_SERVER_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
