package handlers

import (
	"net/http"
	"strconv"

	"predictions/internal/middleware"
)

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) MyLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	entries, err := h.ledger.ListByUser(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch ledger")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.users.Leaderboard(r.Context(), 10)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch leaderboard")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
