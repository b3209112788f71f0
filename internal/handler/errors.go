package handler

import (
	"errors"
	"net/http"

	"notesync/internal/domain"
	"notesync/pkg/response"
)

// writeError maps service errors onto HTTP statuses. Anything unrecognised
// is reported as an internal error without leaking details.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w, "internal server error")
	}
}
