package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hivefund/reconciler/src/security/validation"
	"github.com/hivefund/reconciler/src/services"
	"github.com/hivefund/reconciler/src/utils"
)

func parseYear(r *http.Request) (int, error) {
	return validation.ValidateIntString(chi.URLParam(r, "year"), "year", 2016, 2100)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrValidationFailed),
		errors.Is(err, services.ErrInvalidYear),
		errors.Is(err, services.ErrInvalidTolerance):
		return http.StatusBadRequest
	case services.IsSourceFailure(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func sendServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	utils.SendJSONError(w, msg, status)
}
