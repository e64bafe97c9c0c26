package handler

import (
	"encoding/json"
	"net/http"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP statuses:
// validation 422, state conflicts 409, missing resources 404.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case appErrors.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case appErrors.IsInvalidState(err), appErrors.IsContactInUse(err):
		status = http.StatusConflict
	case appErrors.IsNotFound(err):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
