package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"predictions/internal/lifecycle"
	"predictions/internal/models"
	"predictions/internal/store"
	"predictions/internal/websocket"

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

type stubMarketStore struct {
	getForUpdateFn func(ctx context.Context, tx store.Getter, marketID string) (models.Market, error)
	addStakeFn     func(ctx context.Context, tx store.Execer, marketID, side string, stake int64) error
	updateStatusFn func(ctx context.Context, tx store.Execer, marketID, status string) error
	setResolvedFn  func(ctx context.Context, tx store.Execer, marketID, result string, resolvedAt time.Time) error
}

func (s stubMarketStore) GetForUpdate(ctx context.Context, tx store.Getter, marketID string) (models.Market, error) {
	return s.getForUpdateFn(ctx, tx, marketID)
}

func (s stubMarketStore) AddStake(ctx context.Context, tx store.Execer, marketID, side string, stake int64) error {
	if s.addStakeFn == nil {
		return nil
	}
	return s.addStakeFn(ctx, tx, marketID, side, stake)
}

func (s stubMarketStore) UpdateStatus(ctx context.Context, tx store.Execer, marketID, status string) error {
	if s.updateStatusFn == nil {
		return nil
	}
	return s.updateStatusFn(ctx, tx, marketID, status)
}

func (s stubMarketStore) SetResolved(ctx context.Context, tx store.Execer, marketID, result string, resolvedAt time.Time) error {
	if s.setResolvedFn == nil {
		return nil
	}
	return s.setResolvedFn(ctx, tx, marketID, result, resolvedAt)
}

type stubBetStore struct {
	insertFn      func(ctx context.Context, tx store.Execer, input store.BetInput) error
	listPendingFn func(ctx context.Context, tx store.Selecter, marketID string) ([]models.Bet, error)
	settleFn      func(ctx context.Context, tx store.Execer, betID, status string, actualPayout int64) (int64, error)
}

func (s stubBetStore) Insert(ctx context.Context, tx store.Execer, input store.BetInput) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, input)
}

func (s stubBetStore) ListPendingForUpdate(ctx context.Context, tx store.Selecter, marketID string) ([]models.Bet, error) {
	if s.listPendingFn == nil {
		return nil, nil
	}
	return s.listPendingFn(ctx, tx, marketID)
}

func (s stubBetStore) Settle(ctx context.Context, tx store.Execer, betID, status string, actualPayout int64) (int64, error) {
	if s.settleFn == nil {
		return 1, nil
	}
	return s.settleFn(ctx, tx, betID, status, actualPayout)
}

type stubUserStore struct {
	getForUpdateFn  func(ctx context.Context, tx store.Getter, userID string) (models.User, error)
	updateBalanceFn func(ctx context.Context, tx store.Execer, userID string, balance int64) error
}

func (s stubUserStore) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.User, error) {
	return s.getForUpdateFn(ctx, tx, userID)
}

func (s stubUserStore) UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error {
	if s.updateBalanceFn == nil {
		return nil
	}
	return s.updateBalanceFn(ctx, tx, userID, balance)
}

type stubLedgerStore struct {
	insertFn func(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error
}

func (s stubLedgerStore) InsertEntries(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, entries)
}

type stubHub struct {
	updates map[string][]websocket.BalanceUpdate
}

func newStubHub() *stubHub {
	return &stubHub{updates: map[string][]websocket.BalanceUpdate{}}
}

func (s *stubHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	s.updates[userID] = append(s.updates[userID], update)
}

func newService(markets MarketStore, bets BetStore, users UserStore, ledger LedgerStore, hub BalanceHub) *WagerService {
	return NewWagerService(fakeTxRunner{}, markets, bets, users, ledger, hub, nil, nil, zap.NewNop())
}

func openMarket(yes, no int64) models.Market {
	return models.Market{
		ID:          "market-1",
		Status:      lifecycle.StatusOpen,
		SidePoolYes: yes,
		SidePoolNo:  no,
		TotalPool:   yes + no,
	}
}

func TestPlaceBetRejectsInvalidInput(t *testing.T) {
	service := newService(stubMarketStore{}, stubBetStore{}, stubUserStore{}, stubLedgerStore{}, newStubHub())

	if _, err := service.PlaceBet(context.Background(), "user-1", "market-1", "maybe", 100); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("expected ErrInvalidSide, got %v", err)
	}
	if _, err := service.PlaceBet(context.Background(), "user-1", "market-1", "yes", 0); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("expected ErrInvalidStake, got %v", err)
	}
	if _, err := service.PlaceBet(context.Background(), "user-1", "market-1", "no", -50); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("expected ErrInvalidStake, got %v", err)
	}
}

func TestPlaceBetMarketNotOpen(t *testing.T) {
	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			m := openMarket(0, 0)
			m.Status = lifecycle.StatusClosed
			return m, nil
		},
	}
	service := newService(markets, stubBetStore{}, stubUserStore{}, stubLedgerStore{}, newStubHub())
	if _, err := service.PlaceBet(context.Background(), "user-1", "market-1", "yes", 100); !errors.Is(err, ErrMarketNotOpen) {
		t.Fatalf("expected ErrMarketNotOpen, got %v", err)
	}
}

func TestPlaceBetMarketMissing(t *testing.T) {
	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			return models.Market{}, sql.ErrNoRows
		},
	}
	service := newService(markets, stubBetStore{}, stubUserStore{}, stubLedgerStore{}, newStubHub())
	if _, err := service.PlaceBet(context.Background(), "user-1", "missing", "yes", 100); !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("expected ErrMarketNotFound, got %v", err)
	}
}

func TestPlaceBetInsufficientBalance(t *testing.T) {
	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			return openMarket(0, 0), nil
		},
	}
	users := stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Balance: 99}, nil
		},
	}
	service := newService(markets, stubBetStore{}, users, stubLedgerStore{}, newStubHub())
	if _, err := service.PlaceBet(context.Background(), "user-1", "market-1", "yes", 100); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPlaceBetEmptyPoolEvenOdds(t *testing.T) {
	var staked struct {
		side  string
		stake int64
	}
	var insertedBet store.BetInput
	var newBalance int64
	var entries []store.LedgerEntryInput

	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			return openMarket(0, 0), nil
		},
		addStakeFn: func(_ context.Context, _ store.Execer, _ string, side string, stake int64) error {
			staked.side = side
			staked.stake = stake
			return nil
		},
	}
	users := stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Balance: 100000}, nil
		},
		updateBalanceFn: func(_ context.Context, _ store.Execer, _ string, balance int64) error {
			newBalance = balance
			return nil
		},
	}
	bets := stubBetStore{
		insertFn: func(_ context.Context, _ store.Execer, input store.BetInput) error {
			insertedBet = input
			return nil
		},
	}
	ledger := stubLedgerStore{
		insertFn: func(_ context.Context, _ store.Execer, in []store.LedgerEntryInput) error {
			entries = in
			return nil
		},
	}
	hub := newStubHub()
	service := newService(markets, bets, users, ledger, hub)

	bet, err := service.PlaceBet(context.Background(), "user-1", "market-1", "yes", 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bet.PotentialPayout != 20000 {
		t.Fatalf("expected payout 20000 at even odds, got %d", bet.PotentialPayout)
	}
	if bet.Status != "pending" {
		t.Fatalf("expected pending bet, got %s", bet.Status)
	}
	if staked.side != "yes" || staked.stake != 10000 {
		t.Fatalf("unexpected pool update: %+v", staked)
	}
	if insertedBet.PotentialPayout != 20000 || insertedBet.Stake != 10000 {
		t.Fatalf("unexpected bet input: %+v", insertedBet)
	}
	if newBalance != 90000 {
		t.Fatalf("expected debited balance 90000, got %d", newBalance)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Type != store.EntryTypeBet || entry.Amount != -10000 || entry.BalanceBefore != 100000 || entry.BalanceAfter != 90000 {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if entry.RelatedBetID == nil || *entry.RelatedBetID != bet.ID {
		t.Fatalf("ledger entry not linked to bet")
	}
	if len(hub.updates["user-1"]) != 1 || hub.updates["user-1"][0].Balance != "900.00" {
		t.Fatalf("unexpected balance broadcast: %+v", hub.updates["user-1"])
	}
}

func TestPlaceBetPricesPoolBeforeStake(t *testing.T) {
	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			return openMarket(30000, 70000), nil
		},
	}
	users := stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Balance: 100000}, nil
		},
	}
	service := newService(markets, stubBetStore{}, users, stubLedgerStore{}, newStubHub())

	bet, err := service.PlaceBet(context.Background(), "user-1", "market-1", "yes", 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Price 0.3 from the pre-bet pool; 50.00/0.3 rounds half-up to 166.67.
	if bet.PotentialPayout != 16667 {
		t.Fatalf("expected payout 16667, got %d", bet.PotentialPayout)
	}
}

func TestResolveMarketInvalidResult(t *testing.T) {
	service := newService(stubMarketStore{}, stubBetStore{}, stubUserStore{}, stubLedgerStore{}, newStubHub())
	if _, err := service.ResolveMarket(context.Background(), "market-1", "draw"); !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult, got %v", err)
	}
}

func TestResolveMarketRequiresClosed(t *testing.T) {
	for _, status := range []string{lifecycle.StatusOpen, lifecycle.StatusResolved, lifecycle.StatusCancelled} {
		markets := stubMarketStore{
			getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
				m := openMarket(0, 0)
				m.Status = status
				return m, nil
			},
		}
		service := newService(markets, stubBetStore{}, stubUserStore{}, stubLedgerStore{}, newStubHub())
		if _, err := service.ResolveMarket(context.Background(), "market-1", "yes"); !errors.Is(err, ErrMarketNotResolvable) {
			t.Fatalf("status %s: expected ErrMarketNotResolvable, got %v", status, err)
		}
	}
}

func TestResolveMarketMissing(t *testing.T) {
	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			return models.Market{}, sql.ErrNoRows
		},
	}
	service := newService(markets, stubBetStore{}, stubUserStore{}, stubLedgerStore{}, newStubHub())
	if _, err := service.ResolveMarket(context.Background(), "missing", "yes"); !errors.Is(err, ErrMarketNotResolvable) {
		t.Fatalf("expected ErrMarketNotResolvable, got %v", err)
	}
}

func TestResolveMarketPaysWinnersOnly(t *testing.T) {
	balances := map[string]int64{"alice": 50000, "bob": 50000}
	settled := map[string]string{}
	var entries []store.LedgerEntryInput
	var resolvedResult string

	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			m := openMarket(10000, 20000)
			m.Status = lifecycle.StatusClosed
			return m, nil
		},
		setResolvedFn: func(_ context.Context, _ store.Execer, _, result string, _ time.Time) error {
			resolvedResult = result
			return nil
		},
	}
	bets := stubBetStore{
		listPendingFn: func(context.Context, store.Selecter, string) ([]models.Bet, error) {
			return []models.Bet{
				{ID: "bet-a", UserID: "alice", Side: "yes", Stake: 10000, PotentialPayout: 30000, Status: "pending"},
				{ID: "bet-b", UserID: "bob", Side: "no", Stake: 20000, PotentialPayout: 30000, Status: "pending"},
			}, nil
		},
		settleFn: func(_ context.Context, _ store.Execer, betID, status string, _ int64) (int64, error) {
			settled[betID] = status
			return 1, nil
		},
	}
	users := stubUserStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.User, error) {
			return models.User{ID: userID, Balance: balances[userID]}, nil
		},
		updateBalanceFn: func(_ context.Context, _ store.Execer, userID string, balance int64) error {
			balances[userID] = balance
			return nil
		},
	}
	ledger := stubLedgerStore{
		insertFn: func(_ context.Context, _ store.Execer, in []store.LedgerEntryInput) error {
			entries = append(entries, in...)
			return nil
		},
	}
	hub := newStubHub()
	service := newService(markets, bets, users, ledger, hub)

	summary, err := service.ResolveMarket(context.Background(), "market-1", "yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.WinnersCount != 1 || summary.TotalPayout != 30000 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if settled["bet-a"] != "won" || settled["bet-b"] != "lost" {
		t.Fatalf("unexpected settle calls: %+v", settled)
	}
	if balances["alice"] != 80000 {
		t.Fatalf("expected alice credited to 80000, got %d", balances["alice"])
	}
	if balances["bob"] != 50000 {
		t.Fatalf("loser balance must not change, got %d", balances["bob"])
	}
	if len(entries) != 1 || entries[0].Type != store.EntryTypeWin || entries[0].Amount != 30000 {
		t.Fatalf("expected one win entry, got %+v", entries)
	}
	if resolvedResult != "yes" {
		t.Fatalf("market not marked resolved with result yes")
	}
	if len(hub.updates["alice"]) != 1 || len(hub.updates["bob"]) != 0 {
		t.Fatalf("unexpected broadcasts: %+v", hub.updates)
	}
}

func TestResolveMarketNeverDoublePays(t *testing.T) {
	credited := false
	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			m := openMarket(10000, 0)
			m.Status = lifecycle.StatusClosed
			return m, nil
		},
	}
	bets := stubBetStore{
		listPendingFn: func(context.Context, store.Selecter, string) ([]models.Bet, error) {
			return []models.Bet{
				{ID: "bet-a", UserID: "alice", Side: "yes", Stake: 10000, PotentialPayout: 10000, Status: "pending"},
			}, nil
		},
		// Zero rows affected: the bet left pending between the read and the
		// settle, e.g. a retried unit of work.
		settleFn: func(context.Context, store.Execer, string, string, int64) (int64, error) {
			return 0, nil
		},
	}
	users := stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			credited = true
			return models.User{}, nil
		},
	}
	service := newService(markets, bets, users, stubLedgerStore{}, newStubHub())

	summary, err := service.ResolveMarket(context.Background(), "market-1", "yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited {
		t.Fatal("credit must not happen when the settle guard reports no pending row")
	}
	if summary.WinnersCount != 0 || summary.TotalPayout != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestCancelMarketRefundsPendingBets(t *testing.T) {
	balances := map[string]int64{"alice": 1000, "bob": 2000}
	settled := map[string]int64{}
	var finalStatus string
	var entries []store.LedgerEntryInput

	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			return openMarket(10000, 20000), nil
		},
		updateStatusFn: func(_ context.Context, _ store.Execer, _, status string) error {
			finalStatus = status
			return nil
		},
	}
	bets := stubBetStore{
		listPendingFn: func(context.Context, store.Selecter, string) ([]models.Bet, error) {
			return []models.Bet{
				{ID: "bet-a", UserID: "alice", Side: "yes", Stake: 10000, Status: "pending"},
				{ID: "bet-b", UserID: "bob", Side: "no", Stake: 20000, Status: "pending"},
			}, nil
		},
		settleFn: func(_ context.Context, _ store.Execer, betID, status string, actualPayout int64) (int64, error) {
			if status != "refunded" {
				t.Fatalf("expected refunded status, got %s", status)
			}
			settled[betID] = actualPayout
			return 1, nil
		},
	}
	users := stubUserStore{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (models.User, error) {
			return models.User{ID: userID, Balance: balances[userID]}, nil
		},
		updateBalanceFn: func(_ context.Context, _ store.Execer, userID string, balance int64) error {
			balances[userID] = balance
			return nil
		},
	}
	ledger := stubLedgerStore{
		insertFn: func(_ context.Context, _ store.Execer, in []store.LedgerEntryInput) error {
			entries = append(entries, in...)
			return nil
		},
	}
	service := newService(markets, bets, users, ledger, newStubHub())

	summary, err := service.CancelMarket(context.Background(), "market-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RefundedCount != 2 || summary.TotalRefunded != 30000 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if balances["alice"] != 11000 || balances["bob"] != 22000 {
		t.Fatalf("stakes not refunded: %+v", balances)
	}
	if settled["bet-a"] != 10000 || settled["bet-b"] != 20000 {
		t.Fatalf("unexpected settle payouts: %+v", settled)
	}
	if finalStatus != lifecycle.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", finalStatus)
	}
	for _, entry := range entries {
		if entry.Type != store.EntryTypeRefund {
			t.Fatalf("expected refund entries, got %+v", entry)
		}
	}
}

func TestCancelMarketRejectsTerminalStates(t *testing.T) {
	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			m := openMarket(0, 0)
			m.Status = lifecycle.StatusResolved
			return m, nil
		},
	}
	service := newService(markets, stubBetStore{}, stubUserStore{}, stubLedgerStore{}, newStubHub())
	if _, err := service.CancelMarket(context.Background(), "market-1"); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCloseAndReopenMarket(t *testing.T) {
	status := lifecycle.StatusOpen
	markets := stubMarketStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Market, error) {
			m := openMarket(0, 0)
			m.Status = status
			return m, nil
		},
		updateStatusFn: func(_ context.Context, _ store.Execer, _, next string) error {
			status = next
			return nil
		},
	}
	service := newService(markets, stubBetStore{}, stubUserStore{}, stubLedgerStore{}, newStubHub())

	if err := service.CloseMarket(context.Background(), "market-1"); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if status != lifecycle.StatusClosed {
		t.Fatalf("expected closed, got %s", status)
	}
	if err := service.ReopenMarket(context.Background(), "market-1"); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if status != lifecycle.StatusOpen {
		t.Fatalf("expected open, got %s", status)
	}
	status = lifecycle.StatusResolved
	if err := service.CloseMarket(context.Background(), "market-1"); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAdminCredit(t *testing.T) {
	var newBalance int64
	var entries []store.LedgerEntryInput
	users := stubUserStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.User, error) {
			return models.User{ID: "user-1", Balance: 5000}, nil
		},
		updateBalanceFn: func(_ context.Context, _ store.Execer, _ string, balance int64) error {
			newBalance = balance
			return nil
		},
	}
	ledger := stubLedgerStore{
		insertFn: func(_ context.Context, _ store.Execer, in []store.LedgerEntryInput) error {
			entries = in
			return nil
		},
	}
	service := newService(stubMarketStore{}, stubBetStore{}, users, ledger, newStubHub())

	balance, err := service.AdminCredit(context.Background(), "user-1", 2500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 7500 || newBalance != 7500 {
		t.Fatalf("expected balance 7500, got %d", balance)
	}
	if len(entries) != 1 || entries[0].Type != store.EntryTypeAdminCredit || entries[0].Amount != 2500 {
		t.Fatalf("unexpected ledger entries: %+v", entries)
	}

	if _, err := service.AdminCredit(context.Background(), "user-1", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestPlaceBetPropagatesTxError(t *testing.T) {
	boom := errors.New("store unavailable")
	service := NewWagerService(fakeTxRunner{err: boom}, stubMarketStore{}, stubBetStore{}, stubUserStore{}, stubLedgerStore{}, newStubHub(), nil, nil, zap.NewNop())
	if _, err := service.PlaceBet(context.Background(), "user-1", "market-1", "yes", 100); !errors.Is(err, boom) {
		t.Fatalf("expected tx error, got %v", err)
	}
}
