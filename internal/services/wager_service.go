package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"predictions/internal/db"
	"predictions/internal/events"
	"predictions/internal/lifecycle"
	"predictions/internal/metrics"
	"predictions/internal/models"
	"predictions/internal/money"
	"predictions/internal/pricing"
	"predictions/internal/store"
	"predictions/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrInvalidSide         = errors.New("side must be yes or no")
	ErrInvalidStake        = errors.New("stake must be greater than zero")
	ErrInvalidResult       = errors.New("result must be yes or no")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrMarketNotFound      = errors.New("market not found")
	ErrMarketNotOpen       = errors.New("market is not open")
	ErrMarketNotResolvable = errors.New("market not found or not closed")
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

const (
	SideYes = "yes"
	SideNo  = "no"
)

type MarketStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, marketID string) (models.Market, error)
	AddStake(ctx context.Context, tx store.Execer, marketID, side string, stake int64) error
	UpdateStatus(ctx context.Context, tx store.Execer, marketID, status string) error
	SetResolved(ctx context.Context, tx store.Execer, marketID, result string, resolvedAt time.Time) error
}

type BetStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.BetInput) error
	ListPendingForUpdate(ctx context.Context, tx store.Selecter, marketID string) ([]models.Bet, error)
	Settle(ctx context.Context, tx store.Execer, betID, status string, actualPayout int64) (int64, error)
}

type UserStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.User, error)
	UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error
}

type LedgerStore interface {
	InsertEntries(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type EventPublisher interface {
	BetPlaced(ctx context.Context, e events.BetPlaced)
	MarketResolved(ctx context.Context, e events.MarketResolved)
	MarketCancelled(ctx context.Context, e events.MarketCancelled)
}

type OddsInvalidator interface {
	Invalidate(ctx context.Context, marketID string) error
}

// WagerService is the settlement engine. Every balance and pool mutation in
// the system goes through one of its methods, each of which runs as a single
// serializable transaction.
type WagerService struct {
	txRunner  db.TxRunner
	markets   MarketStore
	bets      BetStore
	users     UserStore
	ledger    LedgerStore
	hub       BalanceHub
	publisher EventPublisher
	odds      OddsInvalidator
	logger    *zap.Logger
}

func NewWagerService(txRunner db.TxRunner, markets MarketStore, bets BetStore, users UserStore, ledger LedgerStore, hub BalanceHub, publisher EventPublisher, odds OddsInvalidator, logger *zap.Logger) *WagerService {
	return &WagerService{
		txRunner:  txRunner,
		markets:   markets,
		bets:      bets,
		users:     users,
		ledger:    ledger,
		hub:       hub,
		publisher: publisher,
		odds:      odds,
		logger:    logger,
	}
}

func ValidSide(side string) bool {
	return side == SideYes || side == SideNo
}

// PlaceBet debits the stake, prices the bet against the pool as persisted at
// that instant, grows the chosen side's pool, and records the bet plus its
// ledger entry, all inside one transaction. The market row lock serializes
// placements per market; the user row lock serializes a user's own bets.
func (s *WagerService) PlaceBet(ctx context.Context, userID, marketID, side string, stakeMinor int64) (models.Bet, error) {
	if !ValidSide(side) {
		return models.Bet{}, ErrInvalidSide
	}
	if stakeMinor <= 0 {
		return models.Bet{}, ErrInvalidStake
	}

	var bet models.Bet
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		market, err := s.markets.GetForUpdate(ctx, tx, marketID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMarketNotFound
			}
			return err
		}
		if market.Status != lifecycle.StatusOpen {
			return ErrMarketNotOpen
		}

		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		if user.Balance < stakeMinor {
			return ErrInsufficientBalance
		}

		// Price before the new stake joins the pool.
		price := pricing.Price(sidePool(market, side), market.TotalPool)
		payout := pricing.PotentialPayout(stakeMinor, price)

		balanceAfter = user.Balance - stakeMinor
		if err := s.users.UpdateBalance(ctx, tx, userID, balanceAfter); err != nil {
			return err
		}
		if err := s.markets.AddStake(ctx, tx, marketID, side, stakeMinor); err != nil {
			return err
		}

		betID := uuid.NewString()
		if err := s.bets.Insert(ctx, tx, store.BetInput{
			ID:              betID,
			MarketID:        marketID,
			UserID:          userID,
			Side:            side,
			Stake:           stakeMinor,
			PotentialPayout: payout,
		}); err != nil {
			return err
		}

		entries := []store.LedgerEntryInput{
			{
				ID:            uuid.NewString(),
				UserID:        userID,
				Type:          store.EntryTypeBet,
				Amount:        -stakeMinor,
				BalanceBefore: user.Balance,
				BalanceAfter:  balanceAfter,
				RelatedBetID:  &betID,
			},
		}
		if err := s.ledger.InsertEntries(ctx, tx, entries); err != nil {
			return err
		}

		bet = models.Bet{
			ID:              betID,
			MarketID:        marketID,
			UserID:          userID,
			Side:            side,
			Stake:           stakeMinor,
			PotentialPayout: payout,
			Status:          "pending",
			CreatedAt:       time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return models.Bet{}, err
	}

	metrics.BetsPlaced.Inc()
	metrics.StakeTotal.Add(float64(stakeMinor))
	s.invalidateOdds(ctx, marketID)
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		Balance: money.FormatMinor(balanceAfter),
		Reason:  store.EntryTypeBet,
	})
	if s.publisher != nil {
		s.publisher.BetPlaced(ctx, events.BetPlaced{
			BetID:           bet.ID,
			MarketID:        marketID,
			UserID:          userID,
			Side:            side,
			Stake:           stakeMinor,
			PotentialPayout: bet.PotentialPayout,
		})
	}
	return bet, nil
}

type ResolutionSummary struct {
	WinnersCount int   `json:"winners_count"`
	TotalPayout  int64 `json:"total_payout"`
}

// ResolveMarket settles every pending bet on a closed market and pays the
// winners, in one transaction. The per-bet pending guard in Settle makes a
// retried resolution unable to double-pay.
func (s *WagerService) ResolveMarket(ctx context.Context, marketID, result string) (ResolutionSummary, error) {
	if !ValidSide(result) {
		return ResolutionSummary{}, ErrInvalidResult
	}

	var summary ResolutionSummary
	balances := map[string]int64{}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		summary = ResolutionSummary{}
		balances = map[string]int64{}

		market, err := s.markets.GetForUpdate(ctx, tx, marketID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMarketNotResolvable
			}
			return err
		}
		if err := lifecycle.Check(market.Status, lifecycle.StatusResolved); err != nil {
			return ErrMarketNotResolvable
		}

		pending, err := s.bets.ListPendingForUpdate(ctx, tx, marketID)
		if err != nil {
			return err
		}
		for _, bet := range pending {
			if bet.Side != result {
				if _, err := s.bets.Settle(ctx, tx, bet.ID, "lost", 0); err != nil {
					return err
				}
				continue
			}
			settled, err := s.bets.Settle(ctx, tx, bet.ID, "won", bet.PotentialPayout)
			if err != nil {
				return err
			}
			if settled == 0 {
				// Already out of pending; never credit twice.
				continue
			}
			if err := s.creditInTx(ctx, tx, bet.UserID, bet.PotentialPayout, store.EntryTypeWin, &bet.ID, balances); err != nil {
				return err
			}
			summary.WinnersCount++
			summary.TotalPayout += bet.PotentialPayout
		}

		return s.markets.SetResolved(ctx, tx, marketID, result, time.Now().UTC())
	})
	if err != nil {
		return ResolutionSummary{}, err
	}

	metrics.MarketsResolved.Inc()
	metrics.PayoutsTotal.Add(float64(summary.TotalPayout))
	s.invalidateOdds(ctx, marketID)
	s.broadcastBalances(balances, store.EntryTypeWin)
	if s.publisher != nil {
		s.publisher.MarketResolved(ctx, events.MarketResolved{
			MarketID:     marketID,
			Result:       result,
			WinnersCount: summary.WinnersCount,
			TotalPayout:  summary.TotalPayout,
		})
	}
	s.logger.Info("market resolved",
		zap.String("market_id", marketID),
		zap.String("result", result),
		zap.Int("winners", summary.WinnersCount),
		zap.Int64("total_payout", summary.TotalPayout),
	)
	return summary, nil
}

type CancellationSummary struct {
	RefundedCount int   `json:"refunded_count"`
	TotalRefunded int64 `json:"total_refunded"`
}

// CancelMarket voids a market and hands every pending stake back, in one
// transaction. Refunds carry the same pending guard as payouts.
func (s *WagerService) CancelMarket(ctx context.Context, marketID string) (CancellationSummary, error) {
	var summary CancellationSummary
	balances := map[string]int64{}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		summary = CancellationSummary{}
		balances = map[string]int64{}

		market, err := s.markets.GetForUpdate(ctx, tx, marketID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMarketNotFound
			}
			return err
		}
		if err := lifecycle.Check(market.Status, lifecycle.StatusCancelled); err != nil {
			return err
		}

		pending, err := s.bets.ListPendingForUpdate(ctx, tx, marketID)
		if err != nil {
			return err
		}
		for _, bet := range pending {
			settled, err := s.bets.Settle(ctx, tx, bet.ID, "refunded", bet.Stake)
			if err != nil {
				return err
			}
			if settled == 0 {
				continue
			}
			if err := s.creditInTx(ctx, tx, bet.UserID, bet.Stake, store.EntryTypeRefund, &bet.ID, balances); err != nil {
				return err
			}
			summary.RefundedCount++
			summary.TotalRefunded += bet.Stake
		}

		return s.markets.UpdateStatus(ctx, tx, marketID, lifecycle.StatusCancelled)
	})
	if err != nil {
		return CancellationSummary{}, err
	}

	metrics.RefundsTotal.Add(float64(summary.TotalRefunded))
	s.invalidateOdds(ctx, marketID)
	s.broadcastBalances(balances, store.EntryTypeRefund)
	if s.publisher != nil {
		s.publisher.MarketCancelled(ctx, events.MarketCancelled{
			MarketID:      marketID,
			RefundedCount: summary.RefundedCount,
			TotalRefunded: summary.TotalRefunded,
		})
	}
	s.logger.Info("market cancelled",
		zap.String("market_id", marketID),
		zap.Int("refunded", summary.RefundedCount),
		zap.Int64("total_refunded", summary.TotalRefunded),
	)
	return summary, nil
}

// CloseMarket stops the betting window. Resolution requires this state.
func (s *WagerService) CloseMarket(ctx context.Context, marketID string) error {
	err := s.transition(ctx, marketID, lifecycle.StatusClosed)
	if err != nil {
		return err
	}
	s.invalidateOdds(ctx, marketID)
	return nil
}

// ReopenMarket moves a closed market back to open. New bets then price
// against the pool exactly as it stood at close, which is why the action is
// logged loudly rather than offered casually.
func (s *WagerService) ReopenMarket(ctx context.Context, marketID string) error {
	err := s.transition(ctx, marketID, lifecycle.StatusOpen)
	if err != nil {
		return err
	}
	s.logger.Warn("market reopened after close, betting window re-exposed",
		zap.String("market_id", marketID),
	)
	s.invalidateOdds(ctx, marketID)
	return nil
}

func (s *WagerService) transition(ctx context.Context, marketID, to string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		market, err := s.markets.GetForUpdate(ctx, tx, marketID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMarketNotFound
			}
			return err
		}
		if err := lifecycle.Check(market.Status, to); err != nil {
			return err
		}
		return s.markets.UpdateStatus(ctx, tx, marketID, to)
	})
}

// AdminCredit grants funds outside the betting flow, ledgered like any other
// balance mutation.
func (s *WagerService) AdminCredit(ctx context.Context, userID string, amountMinor int64) (int64, error) {
	if amountMinor <= 0 {
		return 0, ErrInvalidAmount
	}
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		balanceAfter = user.Balance + amountMinor
		if err := s.users.UpdateBalance(ctx, tx, userID, balanceAfter); err != nil {
			return err
		}
		return s.ledger.InsertEntries(ctx, tx, []store.LedgerEntryInput{
			{
				ID:            uuid.NewString(),
				UserID:        userID,
				Type:          store.EntryTypeAdminCredit,
				Amount:        amountMinor,
				BalanceBefore: user.Balance,
				BalanceAfter:  balanceAfter,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		Balance: money.FormatMinor(balanceAfter),
		Reason:  store.EntryTypeAdminCredit,
	})
	return balanceAfter, nil
}

// creditInTx locks the user row, applies the credit, and appends the matching
// ledger entry. balances collects the final balance per user for post-commit
// broadcast; a user winning several bets is locked and credited per bet, each
// read observing the previous write inside the same transaction.
func (s *WagerService) creditInTx(ctx context.Context, tx store.Tx, userID string, amount int64, entryType string, relatedBetID *string, balances map[string]int64) error {
	user, err := s.users.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}
	after := user.Balance + amount
	if err := s.users.UpdateBalance(ctx, tx, userID, after); err != nil {
		return err
	}
	if err := s.ledger.InsertEntries(ctx, tx, []store.LedgerEntryInput{
		{
			ID:            uuid.NewString(),
			UserID:        userID,
			Type:          entryType,
			Amount:        amount,
			BalanceBefore: user.Balance,
			BalanceAfter:  after,
			RelatedBetID:  relatedBetID,
		},
	}); err != nil {
		return err
	}
	balances[userID] = after
	return nil
}

func (s *WagerService) broadcastBalances(balances map[string]int64, reason string) {
	for userID, balance := range balances {
		s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
			Balance: money.FormatMinor(balance),
			Reason:  reason,
		})
	}
}

func (s *WagerService) invalidateOdds(ctx context.Context, marketID string) {
	if s.odds == nil {
		return
	}
	if err := s.odds.Invalidate(ctx, marketID); err != nil {
		s.logger.Warn("invalidate odds cache", zap.String("market_id", marketID), zap.Error(err))
	}
}

func sidePool(market models.Market, side string) int64 {
	if side == SideYes {
		return market.SidePoolYes
	}
	return market.SidePoolNo
}

// PriceSnapshot is the display view of a market's current odds; handlers
// cache it, the engine never reads it.
type PriceSnapshot struct {
	YesPrice string `json:"yes_price"`
	NoPrice  string `json:"no_price"`
}

func SnapshotPrices(market models.Market) PriceSnapshot {
	yes := pricing.Price(market.SidePoolYes, market.TotalPool)
	no := pricing.Price(market.SidePoolNo, market.TotalPool)
	return PriceSnapshot{
		YesPrice: yes.Round(4).String(),
		NoPrice:  no.Round(4).String(),
	}
}
