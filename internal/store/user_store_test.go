package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"predictions/internal/models"
)

func TestUserStoreGetForUpdateLocksRow(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("expected FOR UPDATE, got: %s", query)
			}
			*dest.(*models.User) = models.User{ID: "user-1", Balance: 5000}
			return nil
		},
	}
	store := NewUserStore(stubDB{})
	user, err := store.GetForUpdate(ctx, getter, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Balance != 5000 {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUserStoreUpdateBalance(t *testing.T) {
	ctx := context.Background()
	var gotArgs []any
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET balance = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			gotArgs = args
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	if err := store.UpdateBalance(ctx, execer, "user-1", 7500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != int64(7500) || gotArgs[1] != "user-1" {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}

func TestUserStoreGetRole(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "SELECT role") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*string) = "admin"
			return nil
		},
	})
	role, err := store.GetRole(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != "admin" {
		t.Fatalf("unexpected role: %s", role)
	}
}

func TestUserStoreLeaderboardOrder(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY balance DESC") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != 10 {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]LeaderboardRow) = []LeaderboardRow{{Username: "alice", Balance: 100}}
			return nil
		},
	})
	rows, err := store.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Username != "alice" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}
