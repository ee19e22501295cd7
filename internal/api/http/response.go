package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"job-board/internal/domain"
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": status < 400, "message": message})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNoResumeAvailable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateApplication):
		return http.StatusConflict
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrApplicationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIdentityNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrLedgerContention), errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status. Internal errors are not echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		message = "Internal server error"
	case http.StatusBadGateway:
		message = domain.ErrUploadFailed.Error()
	case http.StatusServiceUnavailable:
		message = domain.ErrLedgerContention.Error()
	}
	writeMessage(w, status, message)
}
