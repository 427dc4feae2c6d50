package handlers

import (
	"net/http"
	"time"

	"predictions/internal/cache"
	"predictions/internal/config"
	"predictions/internal/db"
	"predictions/internal/middleware"
	"predictions/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handler struct {
	cfg      config.Config
	txRunner db.TxRunner
	users    UserStore
	markets  MarketStore
	bets     BetStore
	ledger   LedgerStore
	service  WagerService
	odds     *cache.OddsCache
	oddsTTL  time.Duration
	hub      *websocket.Hub
	logger   *zap.Logger
}

func New(cfg config.Config, txRunner db.TxRunner, users UserStore, markets MarketStore, bets BetStore, ledger LedgerStore, service WagerService, odds *cache.OddsCache, hub *websocket.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		txRunner: txRunner,
		users:    users,
		markets:  markets,
		bets:     bets,
		ledger:   ledger,
		service:  service,
		odds:     odds,
		oddsTTL: 30 * time.Second,
		hub:     hub,
		logger:  logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	router.Route("/markets", func(r chi.Router) {
		r.Get("/", h.ListMarkets)
		r.Get("/{id}", h.GetMarket)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(h.cfg.JWTSecret))
			r.Use(middleware.RequireAdmin(h.users))
			r.Post("/", h.CreateMarket)
			r.Patch("/{id}/close", h.CloseMarket)
			r.Patch("/{id}/reopen", h.ReopenMarket)
			r.Patch("/{id}/cancel", h.CancelMarket)
			r.Patch("/{id}/resolve", h.ResolveMarket)
		})
	})

	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/bets", h.PlaceBet)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/bets/my", h.MyBets)

	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/users/me", h.Profile)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/users/me/ledger", h.MyLedger)
	router.Get("/users/leaderboard", h.Leaderboard)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAdmin(h.users))
		r.Post("/credit", h.AdminCredit)
		r.Patch("/users/{id}/role", h.SetUserRole)
		r.Get("/reconcile", h.Reconcile)
	})

	router.Get("/ws/balances", h.WSBalances)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusUnauthorized, "token required")
		return
	}
	userID, err := h.userIDFromToken(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, userID)
}
