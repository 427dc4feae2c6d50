package models

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Balance      int64     `db:"balance" json:"balance"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Market struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Category    string     `db:"category" json:"category"`
	Status      string     `db:"status" json:"status"`
	SidePoolYes int64      `db:"side_pool_yes" json:"side_pool_yes"`
	SidePoolNo  int64      `db:"side_pool_no" json:"side_pool_no"`
	TotalPool   int64      `db:"total_pool" json:"total_pool"`
	ClosingTime time.Time  `db:"closing_time" json:"closing_time"`
	Result      *string    `db:"result" json:"result,omitempty"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedBy   *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

type Bet struct {
	ID              string    `db:"id" json:"id"`
	MarketID        string    `db:"market_id" json:"market_id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Side            string    `db:"side" json:"side"`
	Stake           int64     `db:"stake" json:"stake"`
	PotentialPayout int64     `db:"potential_payout" json:"potential_payout"`
	Status          string    `db:"status" json:"status"`
	ActualPayout    *int64    `db:"actual_payout" json:"actual_payout,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type LedgerEntry struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Type          string    `db:"type" json:"type"`
	Amount        int64     `db:"amount" json:"amount"`
	BalanceBefore int64     `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64     `db:"balance_after" json:"balance_after"`
	RelatedBetID  *string   `db:"related_bet_id" json:"related_bet_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
