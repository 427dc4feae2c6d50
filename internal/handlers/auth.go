package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"predictions/internal/auth"
	"predictions/internal/middleware"
	"predictions/internal/store"
	"predictions/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateUsername(req.Username); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	userID := uuid.NewString()
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.Create(r.Context(), tx, userID, req.Username, req.Email, passwordHash); err != nil {
			return err
		}
		return h.grantOpeningBalance(r.Context(), tx, userID)
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			respondError(w, http.StatusConflict, "username or email already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := auth.GenerateToken(h.cfg.JWTSecret, userID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"token": token})
}

// grantOpeningBalance funds a new user through the ledger so replaying their
// entries from zero reproduces the stored balance exactly.
func (h *Handler) grantOpeningBalance(ctx context.Context, tx *sqlx.Tx, userID string) error {
	amount := h.cfg.OpeningBalance
	if amount <= 0 {
		return nil
	}
	if err := h.users.UpdateBalance(ctx, tx, userID, amount); err != nil {
		return err
	}
	return h.ledger.InsertEntries(ctx, tx, []store.LedgerEntryInput{
		{
			ID:            uuid.NewString(),
			UserID:        userID,
			Type:          store.EntryTypeAdminCredit,
			Amount:        amount,
			BalanceBefore: 0,
			BalanceAfter:  amount,
		},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	user, err := h.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
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

func (h *Handler) userIDFromToken(token string) (string, error) {
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
