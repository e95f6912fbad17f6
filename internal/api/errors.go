package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/taskboard/internal/api/shared"
	"github.com/phrazzld/taskboard/internal/domain"
	"github.com/phrazzld/taskboard/internal/service"
	"github.com/phrazzld/taskboard/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes based on
// the error type, so internal error types never decide the wire format.
func MapErrorToStatusCode(err error) int {
	var reqErr *shared.RequestError

	switch {
	// Structural problems with the request itself
	case errors.Is(err, shared.ErrMalformedJSON):
		return http.StatusBadRequest
	case errors.As(err, &reqErr):
		return http.StatusUnprocessableEntity

	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		store.IsNotFoundError(err):
		return http.StatusNotFound

	// Business validation errors
	case domain.IsValidationError(err),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Internal details never reach the client.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var (
		reqErr *shared.RequestError
		valErr *domain.ValidationError
	)

	switch {
	case errors.Is(err, shared.ErrMalformedJSON):
		return "Invalid request format"

	case errors.As(err, &reqErr):
		return reqErr.Error()

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.As(err, &valErr):
		return valErr.Error()

	case domain.IsValidationError(err):
		return "Validation error"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid task data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the error response for err. A non-empty
// fallbackMessage replaces the generic text of 500 responses.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallbackMessage != "" {
		message = fallbackMessage
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
