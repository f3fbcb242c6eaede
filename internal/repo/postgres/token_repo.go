package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenUsed     = errors.New("token already used")
)

type TokenRepo struct {
	pool *pgxpool.Pool
}

type ActiveTokenRecord struct {
	ID          int64
	Code        string
	PlanDays    int
	ActivatedAt time.Time
	ExpiresAt   time.Time
}

type UnusedTokenRecord struct {
	Code     string
	PlanDays int
}

type ActivationRecord struct {
	TokenID   int64
	PlanDays  int
	ExpiresAt time.Time
}

func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

func (r *TokenRepo) InsertBatch(ctx context.Context, codes []string, planDays int) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if len(codes) == 0 || planDays <= 0 {
		return fmt.Errorf("invalid token batch payload")
	}

	return WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, code := range codes {
			if _, err := tx.Exec(ctx, `
INSERT INTO tokens (code, plan_days, is_used, created_at)
VALUES ($1, $2, FALSE, NOW())
`, code, planDays); err != nil {
				return fmt.Errorf("insert token: %w", err)
			}
		}
		return nil
	})
}

// Activate marks the token consumed for the given user. The conditional
// write makes concurrent activations on one code race-safe: exactly one
// caller matches the row, everyone else is classified by a follow-up read.
func (r *TokenRepo) Activate(ctx context.Context, code string, userID int64, now time.Time) (ActivationRecord, error) {
	if r.pool == nil {
		return ActivationRecord{}, fmt.Errorf("postgres pool is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" || userID <= 0 {
		return ActivationRecord{}, fmt.Errorf("invalid token activation payload")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec ActivationRecord
	err := r.pool.QueryRow(ctx, `
UPDATE tokens
SET
	is_used = TRUE,
	used_by_user_id = $2,
	activated_at = $3,
	expires_at = $3::timestamptz + make_interval(days => plan_days)
WHERE code = $1 AND is_used = FALSE
RETURNING id, plan_days, expires_at
`, code, userID, now.UTC()).Scan(&rec.TokenID, &rec.PlanDays, &rec.ExpiresAt)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ActivationRecord{}, fmt.Errorf("activate token: %w", err)
	}

	var isUsed bool
	err = r.pool.QueryRow(ctx, `
SELECT is_used FROM tokens WHERE code = $1
`, code).Scan(&isUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ActivationRecord{}, ErrTokenNotFound
		}
		return ActivationRecord{}, fmt.Errorf("classify token activation miss: %w", err)
	}
	if isUsed {
		return ActivationRecord{}, ErrTokenUsed
	}
	// Not used and yet no row matched: the row changed under us, let the
	// caller retry.
	return ActivationRecord{}, fmt.Errorf("token activation conflict for code")
}

// ActiveForUser returns the consumed token with the furthest future expiry,
// or ErrTokenNotFound when none is still active at the given instant.
func (r *TokenRepo) ActiveForUser(ctx context.Context, userID int64, now time.Time) (ActiveTokenRecord, error) {
	if r.pool == nil {
		return ActiveTokenRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return ActiveTokenRecord{}, fmt.Errorf("invalid user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec ActiveTokenRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, code, plan_days, activated_at, expires_at
FROM tokens
WHERE used_by_user_id = $1
	AND expires_at IS NOT NULL
	AND expires_at > $2
ORDER BY expires_at DESC
LIMIT 1
`, userID, now.UTC()).Scan(&rec.ID, &rec.Code, &rec.PlanDays, &rec.ActivatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ActiveTokenRecord{}, ErrTokenNotFound
		}
		return ActiveTokenRecord{}, fmt.Errorf("find active token for user: %w", err)
	}

	return rec, nil
}

func (r *TokenRepo) ListUnused(ctx context.Context, limit int) ([]UnusedTokenRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT code, plan_days
FROM tokens
WHERE is_used = FALSE
ORDER BY plan_days ASC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unused tokens: %w", err)
	}
	defer rows.Close()

	var out []UnusedTokenRecord
	for rows.Next() {
		var rec UnusedTokenRecord
		if err := rows.Scan(&rec.Code, &rec.PlanDays); err != nil {
			return nil, fmt.Errorf("scan unused token: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unused tokens: %w", err)
	}

	return out, nil
}
