// Package handlers implements the tracker's HTTP API endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/descriptor"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/match"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps domain errors onto HTTP statuses. Everything not
// recognized is an internal error; the message is still surfaced because the
// API is operator-facing.
func respondDomainError(w http.ResponseWriter, err error) {
	var invalidTransition *alert.InvalidTransitionError
	var dimMismatch *match.DimensionMismatchError

	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalidTransition):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, descriptor.ErrNoFaceDetected):
		respondError(w, http.StatusUnprocessableEntity, "no face detected in image")
	case errors.As(err, &dimMismatch):
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
