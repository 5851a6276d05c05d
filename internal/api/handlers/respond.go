package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/labfolio/backend/internal/contracts"
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

func respondData(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// StatusFor maps engine errors to HTTP statuses
// ⭐ SSOT: error → status mapping lives here only
func StatusFor(err error) int {
	switch {
	case contracts.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrNotFound) && !errors.Is(err, contracts.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, contracts.ErrDataUnavailable):
		return http.StatusFailedDependency
	case errors.Is(err, contracts.ErrInsufficientOverlap),
		errors.Is(err, contracts.ErrInsufficientObservations),
		errors.Is(err, contracts.ErrDegenerateModel),
		errors.Is(err, contracts.ErrZeroExposure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes err with its mapped status. Engine errors already name the
// offending symbol and range, so their text is safe to return as is.
func respondErr(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		respondError(w, status, "Internal server error")
		return
	}
	respondError(w, status, err.Error())
}
