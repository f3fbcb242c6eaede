package lookup

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type storageStub struct {
	data map[string]string
}

func (s *storageStub) Stat(ctx context.Context, domain string) (int64, error) {
	body, ok := s.data[domain]
	if !ok {
		return 0, ErrDatasetNotFound
	}
	return int64(len(body)), nil
}

func (s *storageStub) Get(ctx context.Context, domain string) (io.ReadCloser, int64, error) {
	body, ok := s.data[domain]
	if !ok {
		return nil, 0, ErrDatasetNotFound
	}
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

type cacheStub struct {
	counts map[string]int64
	sets   int
}

func (c *cacheStub) GetLineCount(ctx context.Context, domain string) (int64, bool, error) {
	lines, ok := c.counts[domain]
	return lines, ok, nil
}

func (c *cacheStub) SetLineCount(ctx context.Context, domain string, lines int64) error {
	if c.counts == nil {
		c.counts = make(map[string]int64)
	}
	c.counts[domain] = lines
	c.sets++
	return nil
}

type missingLogStub struct {
	domains []string
}

func (m *missingLogStub) Insert(ctx context.Context, userID int64, domain string, now time.Time) error {
	m.domains = append(m.domains, domain)
	return nil
}

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Example.COM", "example.com", false},
		{"https://www.example.com/path?q=1", "example.com", false},
		{"http://sub.example.org:8080/", "sub.example.org", false},
		{"  example.com.  ", "example.com", false},
		{"user@example.com", "example.com", false},
		{"localhost", "", true},
		{"", "", true},
		{"...", "", true},
	}

	for _, tc := range cases {
		got, err := NormalizeDomain(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("NormalizeDomain(%q) err = %v, want validation error", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeDomain(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeDomain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStatsCountsAndCaches(t *testing.T) {
	storage := &storageStub{data: map[string]string{
		"example.com": "a@x:1\nb@x:2\nc@x:3",
	}}
	cache := &cacheStub{}
	svc := NewService(storage, cache, &missingLogStub{}, 45, zap.NewNop())

	stats, err := svc.Stats(context.Background(), 42, "https://example.com/login")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Lines != 3 {
		t.Fatalf("lines = %d, want 3", stats.Lines)
	}
	if stats.SizeBytes != int64(len(storage.data["example.com"])) {
		t.Fatalf("size = %d", stats.SizeBytes)
	}
	if cache.sets != 1 {
		t.Fatalf("cache writes = %d, want 1", cache.sets)
	}

	// Second call must come from the cache, not another scan.
	if _, err := svc.Stats(context.Background(), 42, "example.com"); err != nil {
		t.Fatalf("stats again: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache writes after second call = %d, want 1", cache.sets)
	}
}

func TestStatsMissingDomainRecorded(t *testing.T) {
	missing := &missingLogStub{}
	svc := NewService(&storageStub{data: map[string]string{}}, &cacheStub{}, missing, 45, zap.NewNop())

	if _, err := svc.Stats(context.Background(), 42, "gone.example"); !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("err = %v, want dataset not found", err)
	}
	if len(missing.domains) != 1 || missing.domains[0] != "gone.example" {
		t.Fatalf("missing log = %v, want [gone.example]", missing.domains)
	}
}

func TestFetchTooLarge(t *testing.T) {
	storage := &storageStub{data: map[string]string{
		"example.com": strings.Repeat("x", 2*1024*1024),
	}}
	svc := NewService(storage, &cacheStub{}, &missingLogStub{}, 1, zap.NewNop())

	if _, err := svc.Fetch(context.Background(), 42, "example.com"); !errors.Is(err, ErrDatasetTooLarge) {
		t.Fatalf("err = %v, want dataset too large", err)
	}
}

func TestFetchReturnsBody(t *testing.T) {
	storage := &storageStub{data: map[string]string{
		"example.com": "a@x:1\nb@x:2\n",
	}}
	svc := NewService(storage, &cacheStub{}, &missingLogStub{}, 45, zap.NewNop())

	file, err := svc.Fetch(context.Background(), 42, "example.com")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer file.Body.Close()

	body, err := io.ReadAll(file.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "a@x:1\nb@x:2\n" {
		t.Fatalf("body = %q", body)
	}
	if file.Domain != "example.com" {
		t.Fatalf("domain = %q", file.Domain)
	}
}

func TestCountLinesNoTrailingNewline(t *testing.T) {
	lines, err := countLines(strings.NewReader("one\ntwo\nthree"))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if lines != 3 {
		t.Fatalf("lines = %d, want 3", lines)
	}

	lines, err = countLines(strings.NewReader(""))
	if err != nil {
		t.Fatalf("count empty: %v", err)
	}
	if lines != 0 {
		t.Fatalf("lines = %d, want 0", lines)
	}
}
