package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultStatsTTL = 6 * time.Hour

// StatsRepo caches per-domain dataset line counts so repeated lookups do
// not re-read whole objects from storage.
type StatsRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewStatsRepo(client *goredis.Client, ttl time.Duration) *StatsRepo {
	if ttl <= 0 {
		ttl = defaultStatsTTL
	}
	return &StatsRepo{client: client, ttl: ttl}
}

func (r *StatsRepo) GetLineCount(ctx context.Context, domain string) (int64, bool, error) {
	if r.client == nil {
		return 0, false, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(domain) == "" {
		return 0, false, fmt.Errorf("domain is required")
	}

	count, err := r.client.Get(ctx, statsKey(domain)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get dataset line count: %w", err)
	}

	return count, true, nil
}

func (r *StatsRepo) SetLineCount(ctx context.Context, domain string, lines int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(domain) == "" {
		return fmt.Errorf("domain is required")
	}
	if lines < 0 {
		lines = 0
	}

	if err := r.client.Set(ctx, statsKey(domain), lines, r.ttl).Err(); err != nil {
		return fmt.Errorf("set dataset line count: %w", err)
	}

	return nil
}

func (r *StatsRepo) InvalidateLineCount(ctx context.Context, domain string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(domain) == "" {
		return fmt.Errorf("domain is required")
	}

	if err := r.client.Del(ctx, statsKey(domain)).Err(); err != nil {
		return fmt.Errorf("invalidate dataset line count: %w", err)
	}

	return nil
}

func statsKey(domain string) string {
	return "dataset:lines:" + strings.ToLower(strings.TrimSpace(domain))
}
