package api

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/ttms/core/model"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps the error taxonomy onto status codes. Store failures
// are not echoed to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case model.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case model.IsNotFoundError(err):
		writeError(w, http.StatusNotFound, err.Error())
	case model.IsPermissionDeniedError(err):
		writeError(w, http.StatusForbidden, err.Error())
	case model.IsScheduleConflictError(err), model.IsAlreadyTerminalError(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
