package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrFreeQuotaExceeded = errors.New("free search quota exceeded")
)

type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID         int64
	TelegramID int64
	Username   string
	FirstName  string
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// GetOrCreate registers the user on first contact and refreshes the
// display fields on every subsequent one.
func (r *UserRepo) GetOrCreate(ctx context.Context, telegramID int64, username, firstName string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid telegram_id")
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (telegram_id, username, first_name, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (telegram_id) DO UPDATE SET
	username = EXCLUDED.username,
	first_name = EXCLUDED.first_name,
	updated_at = NOW()
RETURNING id, telegram_id, username, first_name
`, telegramID, strings.TrimSpace(username), strings.TrimSpace(firstName)).Scan(
		&user.ID, &user.TelegramID, &user.Username, &user.FirstName,
	)
	if err != nil {
		return UserRecord{}, fmt.Errorf("get or create user by telegram_id: %w", err)
	}

	return user, nil
}

func (r *UserRepo) FindByTelegramID(ctx context.Context, telegramID int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid telegram_id")
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, telegram_id, username, first_name
FROM users
WHERE telegram_id = $1
`, telegramID).Scan(&user.ID, &user.TelegramID, &user.Username, &user.FirstName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by telegram_id: %w", err)
	}

	return user, nil
}

// ConsumeFreeSearch bumps the daily free-search counter in a single
// conditional update. The counter rolls over when the stored day differs
// from dayKey; the update matches no rows once the ceiling is hit, so a
// concurrent burst cannot overshoot it.
func (r *UserRepo) ConsumeFreeSearch(ctx context.Context, userID int64, dayKey string, ceiling int) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || strings.TrimSpace(dayKey) == "" || ceiling <= 0 {
		return 0, fmt.Errorf("invalid free search payload")
	}

	var count int
	err := r.pool.QueryRow(ctx, `
UPDATE users
SET
	free_search_date = $2::date,
	free_search_count = CASE
		WHEN free_search_date IS NOT DISTINCT FROM $2::date THEN free_search_count + 1
		ELSE 1
	END,
	updated_at = NOW()
WHERE id = $1
	AND (free_search_date IS DISTINCT FROM $2::date OR free_search_count < $3)
RETURNING free_search_count
`, userID, dayKey, ceiling).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, checkErr := r.exists(ctx, userID)
			if checkErr != nil {
				return 0, checkErr
			}
			if !exists {
				return 0, ErrUserNotFound
			}
			return 0, ErrFreeQuotaExceeded
		}
		return 0, fmt.Errorf("consume free search: %w", err)
	}

	return count, nil
}

func (r *UserRepo) exists(ctx context.Context, userID int64) (bool, error) {
	var found bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)
`, userID).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return found, nil
}
