// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/indexforge/backend/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondDomainError maps an engine error to an HTTP status: missing
// entities are 404, recoverable data conditions are 422, everything
// else is a 500 with a generic body.
func respondDomainError(w http.ResponseWriter, err error) {
	kind := contracts.KindOf(err)
	switch {
	case kind == contracts.KindNotFound:
		respondJSON(w, http.StatusNotFound, map[string]string{
			"error": err.Error(),
			"kind":  string(kind),
		})
	case contracts.IsRecoverable(err):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
			"kind":  string(kind),
		})
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
