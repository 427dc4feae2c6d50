package db

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrRetryLimit = errors.New("transaction retry limit exceeded")

type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type SQLXTxRunner struct {
	db      *sqlx.DB
	onRetry func()
}

func NewTxRunner(db *sqlx.DB) SQLXTxRunner {
	return SQLXTxRunner{db: db}
}

// WithRetryHook installs a callback fired once per serialization-conflict retry,
// used to feed the tx_retries metric.
func (r SQLXTxRunner) WithRetryHook(fn func()) SQLXTxRunner {
	r.onRetry = fn
	return r
}

func (r SQLXTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return withTx(ctx, r.db, fn, r.onRetry)
}

func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// WithTx runs fn inside a serializable transaction, retrying on Postgres
// serialization failures and deadlocks so callers see either a clean commit
// or a clean error, never a partial write.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	return withTx(ctx, db, fn, nil)
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error, onRetry func()) error {
	const maxAttempts = 5
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isRetryablePGError(err) && attempt < maxAttempts {
				if onRetry != nil {
					onRetry()
				}
				sleepWithBackoff(attempt)
				continue
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			if isRetryablePGError(err) && attempt < maxAttempts {
				if onRetry != nil {
					onRetry()
				}
				sleepWithBackoff(attempt)
				continue
			}
			return err
		}
		return nil
	}
	return ErrRetryLimit
}

func isRetryablePGError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

func sleepWithBackoff(attempt int) {
	base := 20 * time.Millisecond
	backoff := time.Duration(attempt*attempt) * base
	jitter := time.Duration(rand.Int63n(int64(10 * time.Millisecond)))
	time.Sleep(backoff + jitter)
}
