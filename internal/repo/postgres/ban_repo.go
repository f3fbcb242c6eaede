package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type BanRepo struct {
	pool *pgxpool.Pool
}

type BanRecord struct {
	ID       int64
	Subject  int64
	Reason   string
	BannedAt time.Time
	BanUntil time.Time
}

func NewBanRepo(pool *pgxpool.Pool) *BanRepo {
	return &BanRepo{pool: pool}
}

// Insert appends a ban record. Overlapping bans for the same subject are
// kept as-is; callers resolve which one governs.
func (r *BanRepo) Insert(ctx context.Context, subject int64, reason string, bannedAt, banUntil time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if subject <= 0 {
		return fmt.Errorf("invalid ban subject")
	}
	if !banUntil.After(bannedAt) {
		return fmt.Errorf("ban_until must be after banned_at")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO temp_bans (telegram_id, reason, banned_at, ban_until)
VALUES ($1, $2, $3, $4)
`, subject, strings.TrimSpace(reason), bannedAt.UTC(), banUntil.UTC()); err != nil {
		return fmt.Errorf("insert temp ban: %w", err)
	}

	return nil
}

func (r *BanRepo) ActiveForSubject(ctx context.Context, subject int64, now time.Time) ([]BanRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if subject <= 0 {
		return nil, fmt.Errorf("invalid ban subject")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, telegram_id, reason, banned_at, ban_until
FROM temp_bans
WHERE telegram_id = $1 AND ban_until > $2
`, subject, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list active bans for subject: %w", err)
	}
	defer rows.Close()

	return scanBans(rows)
}

func (r *BanRepo) DeleteForSubject(ctx context.Context, subject int64) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if subject <= 0 {
		return 0, fmt.Errorf("invalid ban subject")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM temp_bans WHERE telegram_id = $1
`, subject)
	if err != nil {
		return 0, fmt.Errorf("delete bans for subject: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *BanRepo) ListActive(ctx context.Context, now time.Time) ([]BanRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, telegram_id, reason, banned_at, ban_until
FROM temp_bans
WHERE ban_until > $1
ORDER BY ban_until ASC
`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list active bans: %w", err)
	}
	defer rows.Close()

	return scanBans(rows)
}

// PurgeExpired removes ban rows whose expiry is older than the cutoff.
func (r *BanRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM temp_bans WHERE ban_until < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired bans: %w", err)
	}

	return tag.RowsAffected(), nil
}

type banRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanBans(rows banRows) ([]BanRecord, error) {
	var out []BanRecord
	for rows.Next() {
		var rec BanRecord
		if err := rows.Scan(&rec.ID, &rec.Subject, &rec.Reason, &rec.BannedAt, &rec.BanUntil); err != nil {
			return nil, fmt.Errorf("scan ban record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ban records: %w", err)
	}
	return out, nil
}
