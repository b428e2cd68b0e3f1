// Package api implements the HTTP handlers and error mapping for the
// task service's REST surface.
package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/bulk"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/service/auth"
	"github.com/phrazzld/task-api/internal/store"
)

// MapErrorToStatusCode translates domain, store and auth errors into HTTP
// status codes. Unrecognized errors map to 500.
func MapErrorToStatusCode(err error) int {
	var validationErr *domain.ValidationError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Conflict errors
	case errors.Is(err, store.ErrEmailExists),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Validation and malformed input errors
	case errors.As(err, &validationErr),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, store.ErrEmptyBatch),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, bulk.ErrTooManyRows),
		errors.Is(err, bulk.ErrMissingColumns):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for the error.
// Internal storage details never leak to the response body.
func GetSafeErrorMessage(err error) string {
	var validationErr *domain.ValidationError
	var rowErr *bulk.RowError

	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Authentication required"
	case errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrExpiredRefreshToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Invalid credentials"
	case errors.Is(err, store.ErrEmailExists):
		return "Email address is already registered"
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"
	case errors.Is(err, store.ErrEmptyBatch):
		return "Uploaded file contains no tasks"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Referenced user does not exist"
	case errors.Is(err, bulk.ErrTooManyRows):
		return "Uploaded file contains too many rows"
	case errors.Is(err, bulk.ErrMissingColumns):
		return "Uploaded file must contain title and description columns"
	case errors.As(err, &rowErr):
		return rowErr.Error()
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidEmail),
		isDomainTaskError(err):
		return err.Error()
	default:
		return "An internal error occurred"
	}
}

// isDomainTaskError reports whether the error is one of the task field
// validation sentinels, whose messages are safe to surface.
func isDomainTaskError(err error) bool {
	return errors.Is(err, domain.ErrEmptyTaskTitle) ||
		errors.Is(err, domain.ErrTaskTitleTooLong) ||
		errors.Is(err, domain.ErrEmptyTaskDescription) ||
		errors.Is(err, domain.ErrTaskDescriptionTooLong) ||
		errors.Is(err, domain.ErrEmptyTaskAuthorID) ||
		errors.Is(err, domain.ErrInvalidTaskStatus)
}

// HandleAPIError maps the error to a status code and safe message, logs
// the original error, and writes the response. The fallbackMessage is
// used when the mapped status is 500 and no safer message exists.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string) {
	status := MapErrorToStatusCode(err)

	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallbackMessage != "" {
		message = fallbackMessage
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
