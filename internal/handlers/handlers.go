package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"predictions/internal/lifecycle"
	"predictions/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps engine errors onto HTTP statuses. Business-rule
// rejections surface verbatim; anything unknown becomes a generic 500 so
// transient store failures stay retryable without leaking internals.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidSide),
		errors.Is(err, services.ErrInvalidStake),
		errors.Is(err, services.ErrInvalidResult),
		errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrMarketNotOpen),
		errors.Is(err, services.ErrInsufficientBalance):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrMarketNotResolvable),
		errors.Is(err, lifecycle.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrMarketNotFound),
		errors.Is(err, services.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "request failed")
	}
}
