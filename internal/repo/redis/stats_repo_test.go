package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestStatsRepoRoundTripAndExpiry(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := NewStatsRepo(client, time.Minute)
	ctx := context.Background()

	_, hit, err := repo.GetLineCount(ctx, "example.com")
	if err != nil {
		t.Fatalf("get before set: %v", err)
	}
	if hit {
		t.Fatalf("expected cache miss before set")
	}

	if err := repo.SetLineCount(ctx, "example.com", 1234); err != nil {
		t.Fatalf("set line count: %v", err)
	}

	count, hit, err := repo.GetLineCount(ctx, "example.com")
	if err != nil {
		t.Fatalf("get after set: %v", err)
	}
	if !hit || count != 1234 {
		t.Fatalf("unexpected cached value: hit=%v count=%d", hit, count)
	}

	mr.FastForward(2 * time.Minute)

	_, hit, err = repo.GetLineCount(ctx, "example.com")
	if err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if hit {
		t.Fatalf("expected cache miss after ttl expiry")
	}
}

func TestStatsRepoInvalidate(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := NewStatsRepo(client, time.Minute)
	ctx := context.Background()

	if err := repo.SetLineCount(ctx, "example.com", 10); err != nil {
		t.Fatalf("set line count: %v", err)
	}
	if err := repo.InvalidateLineCount(ctx, "example.com"); err != nil {
		t.Fatalf("invalidate line count: %v", err)
	}

	_, hit, err := repo.GetLineCount(ctx, "example.com")
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if hit {
		t.Fatalf("expected cache miss after invalidate")
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	return mr, client
}
