package store

import (
	"context"

	"predictions/internal/models"
)

type BetStore struct {
	db DB
}

func NewBetStore(db DB) *BetStore {
	return &BetStore{db: db}
}

type BetInput struct {
	ID              string
	MarketID        string
	UserID          string
	Side            string
	Stake           int64
	PotentialPayout int64
}

func (s *BetStore) Insert(ctx context.Context, tx Execer, input BetInput) error {
	query := `
		INSERT INTO bets (id, market_id, user_id, side, stake, potential_payout, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.MarketID, input.UserID, input.Side, input.Stake, input.PotentialPayout)
	return err
}

func (s *BetStore) GetByID(ctx context.Context, betID string) (models.Bet, error) {
	var row models.Bet
	err := s.db.GetContext(ctx, &row, `
		SELECT id, market_id, user_id, side, stake, potential_payout, status, actual_payout, created_at
		FROM bets
		WHERE id = $1
	`, betID)
	return row, err
}

// ListPendingForUpdate locks every pending bet on the market so settlement
// sees the full set and no placement can slip a new pending row in under it.
func (s *BetStore) ListPendingForUpdate(ctx context.Context, tx Selecter, marketID string) ([]models.Bet, error) {
	var rows []models.Bet
	err := tx.SelectContext(ctx, &rows, `
		SELECT id, market_id, user_id, side, stake, potential_payout, status, actual_payout, created_at
		FROM bets
		WHERE market_id = $1 AND status = 'pending'
		ORDER BY created_at
		FOR UPDATE
	`, marketID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Settle moves a bet out of pending exactly once. The status guard makes a
// retried settlement a no-op for bets already paid.
func (s *BetStore) Settle(ctx context.Context, tx Execer, betID, status string, actualPayout int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE bets
		SET status = $1, actual_payout = $2
		WHERE id = $3 AND status = 'pending'
	`, status, actualPayout, betID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type BetWithMarket struct {
	models.Bet
	MarketTitle  string  `db:"market_title" json:"market_title"`
	MarketStatus string  `db:"market_status" json:"market_status"`
	MarketResult *string `db:"market_result" json:"market_result,omitempty"`
}

func (s *BetStore) ListByUser(ctx context.Context, userID string) ([]BetWithMarket, error) {
	var rows []BetWithMarket
	err := s.db.SelectContext(ctx, &rows, `
		SELECT b.id, b.market_id, b.user_id, b.side, b.stake, b.potential_payout, b.status,
		       b.actual_payout, b.created_at,
		       m.title AS market_title, m.status AS market_status, m.result AS market_result
		FROM bets b
		JOIN markets m ON m.id = b.market_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
