package store

import (
	"context"
	"time"

	"predictions/internal/models"
)

type MarketStore struct {
	db DB
}

func NewMarketStore(db DB) *MarketStore {
	return &MarketStore{db: db}
}

type MarketInput struct {
	ID          string
	Title       string
	Description string
	Category    string
	ClosingTime time.Time
	CreatedBy   string
}

func (s *MarketStore) Create(ctx context.Context, input MarketInput) error {
	query := `
		INSERT INTO markets (id, title, description, category, status, closing_time, created_by)
		VALUES ($1, $2, $3, $4, 'open', $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query, input.ID, input.Title, input.Description, input.Category, input.ClosingTime, input.CreatedBy)
	return err
}

func (s *MarketStore) GetByID(ctx context.Context, marketID string) (models.Market, error) {
	var row models.Market
	err := s.db.GetContext(ctx, &row, `
		SELECT id, title, description, category, status, side_pool_yes, side_pool_no, total_pool,
		       closing_time, result, resolved_at, created_by, created_at
		FROM markets
		WHERE id = $1
	`, marketID)
	return row, err
}

// GetForUpdate locks the market row. Every pool mutation and status change
// goes through this lock, which is what serializes concurrent placements on
// one market without blocking other markets.
func (s *MarketStore) GetForUpdate(ctx context.Context, tx Getter, marketID string) (models.Market, error) {
	var row models.Market
	err := tx.GetContext(ctx, &row, `
		SELECT id, title, description, category, status, side_pool_yes, side_pool_no, total_pool,
		       closing_time, result, resolved_at, created_by, created_at
		FROM markets
		WHERE id = $1
		FOR UPDATE
	`, marketID)
	return row, err
}

// AddStake bumps one side's pool and the total together so the derived
// total_pool invariant holds on every committed row.
func (s *MarketStore) AddStake(ctx context.Context, tx Execer, marketID, side string, stake int64) error {
	column := "side_pool_yes"
	if side == "no" {
		column = "side_pool_no"
	}
	query := `
		UPDATE markets
		SET ` + column + ` = ` + column + ` + $1,
		    total_pool = total_pool + $1,
		    updated_at = NOW()
		WHERE id = $2
	`
	_, err := tx.ExecContext(ctx, query, stake, marketID)
	return err
}

func (s *MarketStore) UpdateStatus(ctx context.Context, tx Execer, marketID, status string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE markets
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, marketID)
	return err
}

func (s *MarketStore) SetResolved(ctx context.Context, tx Execer, marketID, result string, resolvedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE markets
		SET status = 'resolved', result = $1, resolved_at = $2, updated_at = NOW()
		WHERE id = $3
	`, result, resolvedAt, marketID)
	return err
}

func (s *MarketStore) List(ctx context.Context) ([]models.Market, error) {
	var rows []models.Market
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, title, description, category, status, side_pool_yes, side_pool_no, total_pool,
		       closing_time, result, resolved_at, created_by, created_at
		FROM markets
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
