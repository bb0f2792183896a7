package errors

import (
	"errors"
	"net/http"
)

// Sentinel errors. Packages wrap these with fmt.Errorf("%w: ...") so callers can
// branch with errors.Is while still getting a descriptive message.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func BadRequest(message string) *APIError {
	return NewAPIError("bad_request", message, http.StatusBadRequest)
}

// FromError maps an engine error onto the API error returned to clients.
func FromError(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, ErrValidation):
		return NewAPIError("validation_error", err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		return NewAPIError("not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		return NewAPIError("invalid_transition", err.Error(), http.StatusConflict)
	default:
		return NewAPIError("internal_error", "internal error", http.StatusInternalServerError)
	}
}
