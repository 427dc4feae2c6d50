package handlers

import (
	"encoding/json"
	"net/http"

	"predictions/internal/middleware"
)

type placeBetRequest struct {
	MarketID string `json:"market_id"`
	Side     string `json:"side"`
	Stake    string `json:"stake"`
}

func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.MarketID == "" {
		respondError(w, http.StatusBadRequest, "market_id is required")
		return
	}
	stakeMinor, err := parseAmountMinor(req.Stake)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_stake")
		return
	}
	bet, err := h.service.PlaceBet(r.Context(), userID, req.MarketID, req.Side, stakeMinor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, bet)
}

func (h *Handler) MyBets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	bets, err := h.bets.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch bets")
		return
	}
	respondJSON(w, http.StatusOK, bets)
}
