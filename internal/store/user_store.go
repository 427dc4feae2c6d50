package store

import (
	"context"

	"predictions/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, id, username, email, passwordHash string) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, balance)
		VALUES ($1, $2, $3, $4, 'user', 0)
	`
	_, err := tx.ExecContext(ctx, query, id, username, email, passwordHash)
	return err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, role, balance, created_at
		FROM users
		WHERE id = $1
	`, userID)
	return row, err
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, role, balance, created_at
		FROM users
		WHERE username = $1
	`, username)
	return row, err
}

// GetForUpdate locks the user's row so balance mutations within one account
// serialize against each other.
func (s *UserStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (models.User, error) {
	var row models.User
	err := tx.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, role, balance, created_at
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID)
	return row, err
}

func (s *UserStore) UpdateBalance(ctx context.Context, tx Execer, userID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, userID)
	return err
}

func (s *UserStore) GetRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.GetContext(ctx, &role, `
		SELECT role
		FROM users
		WHERE id = $1
	`, userID)
	return role, err
}

func (s *UserStore) SetRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET role = $1, updated_at = NOW()
		WHERE id = $2
	`, role, userID)
	return err
}

type LeaderboardRow struct {
	Username string `db:"username" json:"username"`
	Balance  int64  `db:"balance" json:"balance"`
}

func (s *UserStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT username, balance
		FROM users
		ORDER BY balance DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
