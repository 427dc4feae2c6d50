package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"predictions/internal/auth"
	"predictions/internal/config"
	"predictions/internal/middleware"
	"predictions/internal/models"
	"predictions/internal/services"
	"predictions/internal/store"
	"predictions/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn        func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByIDFn       func(ctx context.Context, userID string) (models.User, error)
	getByUsernameFn func(ctx context.Context, username string) (models.User, error)
	getRoleFn       func(ctx context.Context, userID string) (string, error)
	setRoleFn       func(ctx context.Context, userID, role string) error
	updateBalanceFn func(ctx context.Context, tx store.Execer, userID string, balance int64) error
	leaderboardFn   func(ctx context.Context, limit int) ([]store.LeaderboardRow, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	if s.getByUsernameFn == nil {
		return models.User{}, nil
	}
	return s.getByUsernameFn(ctx, username)
}

func (s stubUserStore) GetRole(ctx context.Context, userID string) (string, error) {
	if s.getRoleFn == nil {
		return "user", nil
	}
	return s.getRoleFn(ctx, userID)
}

func (s stubUserStore) SetRole(ctx context.Context, userID, role string) error {
	if s.setRoleFn == nil {
		return nil
	}
	return s.setRoleFn(ctx, userID, role)
}

func (s stubUserStore) UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error {
	if s.updateBalanceFn == nil {
		return nil
	}
	return s.updateBalanceFn(ctx, tx, userID, balance)
}

func (s stubUserStore) Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardRow, error) {
	if s.leaderboardFn == nil {
		return nil, nil
	}
	return s.leaderboardFn(ctx, limit)
}

type stubMarketStore struct {
	createFn  func(ctx context.Context, input store.MarketInput) error
	getByIDFn func(ctx context.Context, marketID string) (models.Market, error)
	listFn    func(ctx context.Context) ([]models.Market, error)
}

func (s stubMarketStore) Create(ctx context.Context, input store.MarketInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubMarketStore) GetByID(ctx context.Context, marketID string) (models.Market, error) {
	if s.getByIDFn == nil {
		return models.Market{ID: marketID}, nil
	}
	return s.getByIDFn(ctx, marketID)
}

func (s stubMarketStore) List(ctx context.Context) ([]models.Market, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

type stubBetStore struct {
	listByUserFn func(ctx context.Context, userID string) ([]store.BetWithMarket, error)
}

func (s stubBetStore) ListByUser(ctx context.Context, userID string) ([]store.BetWithMarket, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

type stubLedgerStore struct {
	insertFn     func(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error
	listByUserFn func(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)
	replayFn     func(ctx context.Context) ([]store.ReplayRow, error)
}

func (s stubLedgerStore) InsertEntries(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, entries)
}

func (s stubLedgerStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit)
}

func (s stubLedgerStore) Replay(ctx context.Context) ([]store.ReplayRow, error) {
	if s.replayFn == nil {
		return nil, nil
	}
	return s.replayFn(ctx)
}

type stubWagerService struct {
	placeBetFn      func(ctx context.Context, userID, marketID, side string, stakeMinor int64) (models.Bet, error)
	resolveMarketFn func(ctx context.Context, marketID, result string) (services.ResolutionSummary, error)
	cancelMarketFn  func(ctx context.Context, marketID string) (services.CancellationSummary, error)
	closeMarketFn   func(ctx context.Context, marketID string) error
	reopenMarketFn  func(ctx context.Context, marketID string) error
	adminCreditFn   func(ctx context.Context, userID string, amountMinor int64) (int64, error)
}

func (s stubWagerService) PlaceBet(ctx context.Context, userID, marketID, side string, stakeMinor int64) (models.Bet, error) {
	if s.placeBetFn == nil {
		return models.Bet{}, nil
	}
	return s.placeBetFn(ctx, userID, marketID, side, stakeMinor)
}

func (s stubWagerService) ResolveMarket(ctx context.Context, marketID, result string) (services.ResolutionSummary, error) {
	if s.resolveMarketFn == nil {
		return services.ResolutionSummary{}, nil
	}
	return s.resolveMarketFn(ctx, marketID, result)
}

func (s stubWagerService) CancelMarket(ctx context.Context, marketID string) (services.CancellationSummary, error) {
	if s.cancelMarketFn == nil {
		return services.CancellationSummary{}, nil
	}
	return s.cancelMarketFn(ctx, marketID)
}

func (s stubWagerService) CloseMarket(ctx context.Context, marketID string) error {
	if s.closeMarketFn == nil {
		return nil
	}
	return s.closeMarketFn(ctx, marketID)
}

func (s stubWagerService) ReopenMarket(ctx context.Context, marketID string) error {
	if s.reopenMarketFn == nil {
		return nil
	}
	return s.reopenMarketFn(ctx, marketID)
}

func (s stubWagerService) AdminCredit(ctx context.Context, userID string, amountMinor int64) (int64, error) {
	if s.adminCreditFn == nil {
		return 0, nil
	}
	return s.adminCreditFn(ctx, userID, amountMinor)
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "test-secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		OpeningBalance: 100000,
	}
}

func newTestHandler(users stubUserStore, markets stubMarketStore, bets stubBetStore, ledger stubLedgerStore, service stubWagerService) *Handler {
	return New(testConfig(), fakeTxRunner{}, users, markets, bets, ledger, service, nil, websocket.NewHub(), zap.NewNop())
}

func authedRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	token, err := auth.GenerateToken("test-secret", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func serveAuthed(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	middleware.Auth("test-secret")(handler).ServeHTTP(rr, req)
	return rr
}
