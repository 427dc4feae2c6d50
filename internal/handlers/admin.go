package handlers

import (
	"encoding/json"
	"net/http"

	"predictions/internal/money"

	"github.com/go-chi/chi/v5"
)

type adminCreditRequest struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

func (h *Handler) AdminCredit(w http.ResponseWriter, r *http.Request) {
	var req adminCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	balance, err := h.service.AdminCredit(r.Context(), req.UserID, amountMinor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"balance": money.FormatMinor(balance)})
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Role != "user" && req.Role != "admin" {
		respondError(w, http.StatusBadRequest, "role must be user or admin")
		return
	}
	if err := h.users.SetRole(r.Context(), userID, req.Role); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"role": req.Role})
}

// Reconcile recomputes every balance from the ledger. Non-empty differences
// mean a write bypassed the engine.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.Replay(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reconcile")
		return
	}
	mismatches := 0
	for _, row := range rows {
		if row.Difference != 0 {
			mismatches++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"accounts":   rows,
		"mismatches": mismatches,
	})
}
