package integration_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Habibi330/anexo-lookup-bot/internal/domain/rules"
	pgrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/postgres"
)

// The tests below need a throwaway Postgres instance; point
// TEST_DATABASE_DSN at it to run them. They cover the invariants that live
// in SQL rather than in Go: the free-quota ceiling and day rollover, the
// single-winner token activation, and the strict expiry cutoff.

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}

	if err := pgrepo.Migrate(dsn, "../../migrations", nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	pool, err := pgrepo.NewPool(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect to postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func newTestUser(t *testing.T, users *pgrepo.UserRepo) pgrepo.UserRecord {
	t.Helper()

	user, err := users.GetOrCreate(context.Background(), time.Now().UnixNano(), "itest", "Itest")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func newTestToken(t *testing.T, tokens *pgrepo.TokenRepo, planDays int) string {
	t.Helper()

	code, err := rules.NewTokenCode()
	if err != nil {
		t.Fatalf("generate token code: %v", err)
	}
	if err := tokens.InsertBatch(context.Background(), []string{code}, planDays); err != nil {
		t.Fatalf("insert test token: %v", err)
	}
	return code
}

func TestConsumeFreeSearchCeilingAndRollover(t *testing.T) {
	pool := newTestPool(t)
	users := pgrepo.NewUserRepo(pool)
	user := newTestUser(t, users)
	ctx := context.Background()

	const ceiling = 10
	day := "2026-05-01"

	for i := 1; i <= ceiling; i++ {
		count, err := users.ConsumeFreeSearch(ctx, user.ID, day, ceiling)
		if err != nil {
			t.Fatalf("consume #%d: %v", i, err)
		}
		if count != i {
			t.Fatalf("consume #%d: count = %d, want %d", i, count, i)
		}
	}

	if _, err := users.ConsumeFreeSearch(ctx, user.ID, day, ceiling); !errors.Is(err, pgrepo.ErrFreeQuotaExceeded) {
		t.Fatalf("consume past ceiling: got %v, want ErrFreeQuotaExceeded", err)
	}

	count, err := users.ConsumeFreeSearch(ctx, user.ID, "2026-05-02", ceiling)
	if err != nil {
		t.Fatalf("consume on next day: %v", err)
	}
	if count != 1 {
		t.Fatalf("next-day count = %d, want 1 after rollover", count)
	}

	if _, err := users.ConsumeFreeSearch(ctx, 1<<60, day, ceiling); !errors.Is(err, pgrepo.ErrUserNotFound) {
		t.Fatalf("consume for unknown user: got %v, want ErrUserNotFound", err)
	}
}

func TestActivateSingleWinner(t *testing.T) {
	pool := newTestPool(t)
	users := pgrepo.NewUserRepo(pool)
	tokens := pgrepo.NewTokenRepo(pool)
	ctx := context.Background()

	first := newTestUser(t, users)
	second := newTestUser(t, users)
	code := newTestToken(t, tokens, 7)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []int64{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, errs[i] = tokens.Activate(ctx, code, userID, now)
		}(i, userID)
	}
	wg.Wait()

	var won, used int
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, pgrepo.ErrTokenUsed):
			used++
		default:
			t.Fatalf("activation #%d: unexpected error %v", i, err)
		}
	}
	if won != 1 || used != 1 {
		t.Fatalf("got %d winners and %d losers, want exactly one of each", won, used)
	}

	if _, err := tokens.Activate(ctx, code, first.ID, now); !errors.Is(err, pgrepo.ErrTokenUsed) {
		t.Fatalf("re-activation: got %v, want ErrTokenUsed", err)
	}
	if _, err := tokens.Activate(ctx, "0000-0000-0000-0000", first.ID, now); !errors.Is(err, pgrepo.ErrTokenNotFound) {
		t.Fatalf("unknown code: got %v, want ErrTokenNotFound", err)
	}
}

func TestActiveForUserStrictExpiry(t *testing.T) {
	pool := newTestPool(t)
	users := pgrepo.NewUserRepo(pool)
	tokens := pgrepo.NewTokenRepo(pool)
	ctx := context.Background()

	user := newTestUser(t, users)
	code := newTestToken(t, tokens, 7)

	rec, err := tokens.Activate(ctx, code, user.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("activate token: %v", err)
	}

	active, err := tokens.ActiveForUser(ctx, user.ID, rec.ExpiresAt.Add(-time.Second))
	if err != nil {
		t.Fatalf("lookup before expiry: %v", err)
	}
	if active.Code != code {
		t.Fatalf("active code = %q, want %q", active.Code, code)
	}

	// expires_at is exclusive: the token is gone at the exact instant.
	if _, err := tokens.ActiveForUser(ctx, user.ID, rec.ExpiresAt); !errors.Is(err, pgrepo.ErrTokenNotFound) {
		t.Fatalf("lookup at expiry instant: got %v, want ErrTokenNotFound", err)
	}
}
