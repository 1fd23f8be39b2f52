package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/services"
)

const (
	msgInvalidBody  = "Invalid request body"
	msgBodyTooLarge = "Request body too large."
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps a service error kind to its status code. Conflicts are
// reported as 400 to match the clients already in the field.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConflict):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrAuth):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	default:
		log.WithError(err).WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Error("request failed")
	}
	writeJSON(w, status, models.NewErrorResponse(services.Message(err)))
}

// decodeJSON reads the request body into v. An empty body leaves v untouched
// when allowEmpty is set. It writes the error response itself and reports
// whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, models.NewErrorResponse(msgBodyTooLarge))
		return false
	}
	writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(msgInvalidBody))
	return false
}
