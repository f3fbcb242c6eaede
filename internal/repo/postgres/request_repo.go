package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RequestRepo is the append-only log of lookups that had no dataset behind
// them; operators use it to prioritize ingestion.
type RequestRepo struct {
	pool *pgxpool.Pool
}

type MissingRequestRecord struct {
	ID        int64
	UserID    int64
	Domain    string
	CreatedAt time.Time
}

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

func (r *RequestRepo) Insert(ctx context.Context, userID int64, domain string, now time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	domain = strings.TrimSpace(domain)
	if userID <= 0 || domain == "" {
		return fmt.Errorf("invalid missing request payload")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO missing_requests (user_id, domain, created_at)
VALUES ($1, $2, $3)
`, userID, domain, now.UTC()); err != nil {
		return fmt.Errorf("insert missing request: %w", err)
	}

	return nil
}

func (r *RequestRepo) ListRecent(ctx context.Context, limit int) ([]MissingRequestRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, domain, created_at
FROM missing_requests
ORDER BY created_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list missing requests: %w", err)
	}
	defer rows.Close()

	var out []MissingRequestRecord
	for rows.Next() {
		var rec MissingRequestRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Domain, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan missing request: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missing requests: %w", err)
	}

	return out, nil
}
