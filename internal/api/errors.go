package api

import (
	"errors"
	"net/http"

	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
	"github.com/promptdeck/promptdeck-api/internal/service/auth"
	"github.com/promptdeck/promptdeck-api/internal/store"
)

// ErrJobNotOwned is returned when a caller references a job that belongs to
// another user. Mapped to 403 rather than 404 so owners of stale IDs can tell
// the two cases apart; job IDs are not secret.
var ErrJobNotOwned = errors.New("job belongs to another user")

// ErrInvalidID is returned when a path or body ID is not a valid UUID.
var ErrInvalidID = errors.New("invalid ID format")

// MapErrorToStatusCode translates domain and infrastructure errors into HTTP
// status codes. Anything unrecognized is a 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized

	case errors.Is(err, ErrJobNotOwned):
		return http.StatusForbidden

	case errors.Is(err, job.ErrJobNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidID),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrNilJobPayload),
		errors.Is(err, domain.ErrPayloadTypeMismatch),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, job.ErrInvalidTransition):
		return http.StatusBadRequest

	case errors.Is(err, job.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err. Internal
// details never leak; the redacted original is logged separately.
func GetSafeErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Authentication required"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "Invalid authentication token"
	case errors.Is(err, ErrJobNotOwned):
		return "You do not have access to this job"
	case errors.Is(err, ErrInvalidID):
		return "Invalid ID format"
	case errors.Is(err, job.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, store.ErrItemNotFound):
		return "Item not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"
	case errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrNilJobPayload),
		errors.Is(err, domain.ErrPayloadTypeMismatch),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request: " + err.Error()
	case errors.Is(err, job.ErrInvalidTransition):
		return "Job is not in a state that allows this operation"
	case errors.Is(err, job.ErrQueueClosed):
		return "Service is shutting down"
	default:
		return "An internal error occurred"
	}
}
