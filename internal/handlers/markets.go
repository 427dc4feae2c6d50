package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"predictions/internal/middleware"
	"predictions/internal/models"
	"predictions/internal/services"
	"predictions/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type marketView struct {
	models.Market
	Prices services.PriceSnapshot `json:"prices"`
}

func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch markets")
		return
	}
	views := make([]marketView, 0, len(markets))
	for _, m := range markets {
		views = append(views, marketView{Market: m, Prices: services.SnapshotPrices(m)})
	}
	respondJSON(w, http.StatusOK, views)
}

// GetMarket serves the display view through the odds cache. Staleness up to
// the TTL is fine here; placement never reads this path.
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")

	if h.odds != nil {
		var cached marketView
		hit, err := h.odds.GetMarket(r.Context(), marketID, &cached)
		if err != nil {
			h.logger.Warn("odds cache read", zap.String("market_id", marketID), zap.Error(err))
		}
		if hit {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	market, err := h.markets.GetByID(r.Context(), marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "market not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to fetch market")
		return
	}
	view := marketView{Market: market, Prices: services.SnapshotPrices(market)}
	if h.odds != nil {
		if err := h.odds.SetMarket(r.Context(), marketID, view, h.oddsTTL); err != nil {
			h.logger.Warn("odds cache write", zap.String("market_id", marketID), zap.Error(err))
		}
	}
	respondJSON(w, http.StatusOK, view)
}

type createMarketRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ClosingTime time.Time `json:"closing_time"`
}

func (h *Handler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Title == "" || req.ClosingTime.IsZero() {
		respondError(w, http.StatusBadRequest, "title and closing_time are required")
		return
	}
	marketID := uuid.NewString()
	err := h.markets.Create(r.Context(), store.MarketInput{
		ID:          marketID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		ClosingTime: req.ClosingTime.UTC(),
		CreatedBy:   userID,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create market")
		return
	}
	market, err := h.markets.GetByID(r.Context(), marketID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch market")
		return
	}
	respondJSON(w, http.StatusCreated, market)
}

func (h *Handler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	if err := h.service.CloseMarket(r.Context(), marketID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (h *Handler) ReopenMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	if err := h.service.ReopenMarket(r.Context(), marketID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "open"})
}

func (h *Handler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	summary, err := h.service.CancelMarket(r.Context(), marketID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

type resolveRequest struct {
	Result string `json:"result"`
}

func (h *Handler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	summary, err := h.service.ResolveMarket(r.Context(), marketID, req.Result)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
