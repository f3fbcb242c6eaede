package lookup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrDatasetTooLarge = errors.New("dataset file too large")
)

const maxDomainLength = 255

type Storage interface {
	Stat(ctx context.Context, domain string) (int64, error)
	Get(ctx context.Context, domain string) (io.ReadCloser, int64, error)
}

type LineCountCache interface {
	GetLineCount(ctx context.Context, domain string) (int64, bool, error)
	SetLineCount(ctx context.Context, domain string, lines int64) error
}

type MissingLog interface {
	Insert(ctx context.Context, userID int64, domain string, now time.Time) error
}

type Stats struct {
	Domain    string
	Lines     int64
	SizeBytes int64
}

type File struct {
	Domain    string
	Body      io.ReadCloser
	SizeBytes int64
}

type Service struct {
	storage Storage
	cache   LineCountCache
	missing MissingLog
	logger  *zap.Logger

	maxFileBytes int64
	now          func() time.Time
}

func NewService(storage Storage, cache LineCountCache, missing MissingLog, maxFileMB int, logger *zap.Logger) *Service {
	if maxFileMB <= 0 {
		maxFileMB = 45
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		storage:      storage,
		cache:        cache,
		missing:      missing,
		logger:       logger,
		maxFileBytes: int64(maxFileMB) * 1024 * 1024,
		now:          time.Now,
	}
}

// NormalizeDomain reduces raw user input to a bare lowercase host name.
// Scheme, path, query, port and a leading www. are stripped; anything that
// does not look like a domain afterwards is rejected.
func NormalizeDomain(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrValidation
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")

	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = strings.Trim(b.String(), ".-")

	if s == "" || len(s) > maxDomainLength || !strings.Contains(s, ".") {
		return "", ErrValidation
	}
	return s, nil
}

// Stats reports the size and line count of the dataset for the domain. A
// miss is recorded so operators can see which domains people ask for.
func (s *Service) Stats(ctx context.Context, userID int64, rawDomain string) (Stats, error) {
	domain, err := NormalizeDomain(rawDomain)
	if err != nil {
		return Stats{}, err
	}

	size, err := s.storage.Stat(ctx, domain)
	if err != nil {
		if errors.Is(err, ErrDatasetNotFound) {
			s.recordMissing(ctx, userID, domain)
			return Stats{}, ErrDatasetNotFound
		}
		return Stats{}, fmt.Errorf("stat dataset %q: %w", domain, err)
	}

	lines, err := s.lineCount(ctx, domain)
	if err != nil {
		return Stats{}, err
	}

	return Stats{Domain: domain, Lines: lines, SizeBytes: size}, nil
}

// Fetch opens the dataset file for the domain. The caller owns Body and
// must close it. Files above the configured cap are refused because the
// delivery channel cannot carry them.
func (s *Service) Fetch(ctx context.Context, userID int64, rawDomain string) (File, error) {
	domain, err := NormalizeDomain(rawDomain)
	if err != nil {
		return File{}, err
	}

	size, err := s.storage.Stat(ctx, domain)
	if err != nil {
		if errors.Is(err, ErrDatasetNotFound) {
			s.recordMissing(ctx, userID, domain)
			return File{}, ErrDatasetNotFound
		}
		return File{}, fmt.Errorf("stat dataset %q: %w", domain, err)
	}
	if size > s.maxFileBytes {
		return File{}, ErrDatasetTooLarge
	}

	body, size, err := s.storage.Get(ctx, domain)
	if err != nil {
		if errors.Is(err, ErrDatasetNotFound) {
			s.recordMissing(ctx, userID, domain)
			return File{}, ErrDatasetNotFound
		}
		return File{}, fmt.Errorf("get dataset %q: %w", domain, err)
	}

	return File{Domain: domain, Body: body, SizeBytes: size}, nil
}

func (s *Service) lineCount(ctx context.Context, domain string) (int64, error) {
	if s.cache != nil {
		if lines, ok, err := s.cache.GetLineCount(ctx, domain); err != nil {
			s.logger.Warn("line count cache read failed", zap.String("domain", domain), zap.Error(err))
		} else if ok {
			return lines, nil
		}
	}

	body, _, err := s.storage.Get(ctx, domain)
	if err != nil {
		return 0, fmt.Errorf("get dataset %q: %w", domain, err)
	}
	defer body.Close()

	lines, err := countLines(body)
	if err != nil {
		return 0, fmt.Errorf("count lines for %q: %w", domain, err)
	}

	if s.cache != nil {
		if err := s.cache.SetLineCount(ctx, domain, lines); err != nil {
			s.logger.Warn("line count cache write failed", zap.String("domain", domain), zap.Error(err))
		}
	}
	return lines, nil
}

func (s *Service) recordMissing(ctx context.Context, userID int64, domain string) {
	if s.missing == nil {
		return
	}
	if err := s.missing.Insert(ctx, userID, domain, s.now().UTC()); err != nil {
		s.logger.Warn("record missing domain failed", zap.String("domain", domain), zap.Error(err))
	}
}

func countLines(r io.Reader) (int64, error) {
	br := bufio.NewReader(r)
	var lines int64
	var lastByte byte
	empty := true

	for {
		chunk, err := br.ReadBytes('\n')
		if len(chunk) > 0 {
			empty = false
			lastByte = chunk[len(chunk)-1]
			if lastByte == '\n' {
				lines++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}

	// A trailing fragment without a newline still counts as a line.
	if !empty && lastByte != '\n' {
		lines++
	}
	return lines, nil
}
