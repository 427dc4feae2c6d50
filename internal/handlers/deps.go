package handlers

import (
	"context"

	"predictions/internal/models"
	"predictions/internal/services"
	"predictions/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByID(ctx context.Context, userID string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetRole(ctx context.Context, userID string) (string, error)
	SetRole(ctx context.Context, userID, role string) error
	UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error
	Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardRow, error)
}

type MarketStore interface {
	Create(ctx context.Context, input store.MarketInput) error
	GetByID(ctx context.Context, marketID string) (models.Market, error)
	List(ctx context.Context) ([]models.Market, error)
}

type BetStore interface {
	ListByUser(ctx context.Context, userID string) ([]store.BetWithMarket, error)
}

type LedgerStore interface {
	InsertEntries(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)
	Replay(ctx context.Context) ([]store.ReplayRow, error)
}

type WagerService interface {
	PlaceBet(ctx context.Context, userID, marketID, side string, stakeMinor int64) (models.Bet, error)
	ResolveMarket(ctx context.Context, marketID, result string) (services.ResolutionSummary, error)
	CancelMarket(ctx context.Context, marketID string) (services.CancellationSummary, error)
	CloseMarket(ctx context.Context, marketID string) error
	ReopenMarket(ctx context.Context, marketID string) error
	AdminCredit(ctx context.Context, userID string, amountMinor int64) (int64, error)
}
