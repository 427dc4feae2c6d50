package store

import (
	"context"

	"predictions/internal/models"
)

const (
	EntryTypeBet         = "bet"
	EntryTypeWin         = "win"
	EntryTypeRefund      = "refund"
	EntryTypeAdminCredit = "admin_credit"
)

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

type LedgerEntryInput struct {
	ID            string
	UserID        string
	Type          string
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	RelatedBetID  *string
}

func (s *LedgerStore) InsertEntries(ctx context.Context, tx Execer, entries []LedgerEntryInput) error {
	query := `
		INSERT INTO ledger_entries (id, user_id, type, amount, balance_before, balance_after, related_bet_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, entry.ID, entry.UserID, entry.Type, entry.Amount, entry.BalanceBefore, entry.BalanceAfter, entry.RelatedBetID); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, amount, balance_before, balance_after, related_bet_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type ReplayRow struct {
	UserID        string `db:"user_id" json:"user_id"`
	Username      string `db:"username" json:"username"`
	StoredBalance int64  `db:"stored_balance" json:"stored_balance"`
	LedgerBalance int64  `db:"ledger_balance" json:"ledger_balance"`
	Difference    int64  `db:"difference" json:"difference"`
}

// Replay recomputes each balance from its ledger entries. Any nonzero
// difference means a balance was mutated outside the engine's transactions.
func (s *LedgerStore) Replay(ctx context.Context) ([]ReplayRow, error) {
	var rows []ReplayRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.id AS user_id,
		       u.username,
		       u.balance AS stored_balance,
		       COALESCE(SUM(l.amount), 0) AS ledger_balance,
		       (u.balance - COALESCE(SUM(l.amount), 0)) AS difference
		FROM users u
		LEFT JOIN ledger_entries l ON l.user_id = u.id
		GROUP BY u.id, u.username, u.balance
		ORDER BY u.username
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
