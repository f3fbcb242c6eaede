package bans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pgrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

const defaultReason = "manual"

type Repo interface {
	Insert(ctx context.Context, subject int64, reason string, bannedAt, banUntil time.Time) error
	ActiveForSubject(ctx context.Context, subject int64, now time.Time) ([]pgrepo.BanRecord, error)
	DeleteForSubject(ctx context.Context, subject int64) (int64, error)
	ListActive(ctx context.Context, now time.Time) ([]pgrepo.BanRecord, error)
}

type Status struct {
	Blocked     bool
	SecondsLeft int64
	Reason      string
	BanUntil    time.Time
}

type ActiveBan struct {
	Subject     int64
	Reason      string
	BannedAt    time.Time
	BanUntil    time.Time
	SecondsLeft int64
}

type Service struct {
	repo Repo
	now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// IsBlocked reports whether the subject is currently banned. When bans
// overlap, the one with the furthest expiry governs.
func (s *Service) IsBlocked(ctx context.Context, subject int64, now time.Time) (Status, error) {
	if subject <= 0 {
		return Status{}, ErrValidation
	}
	if s.repo == nil {
		return Status{}, fmt.Errorf("ban repo is nil")
	}
	if now.IsZero() {
		now = s.now().UTC()
	}

	records, err := s.repo.ActiveForSubject(ctx, subject, now)
	if err != nil {
		return Status{}, err
	}
	if len(records) == 0 {
		return Status{}, nil
	}

	governing := records[0]
	for _, rec := range records[1:] {
		if rec.BanUntil.After(governing.BanUntil) {
			governing = rec
		}
	}

	secondsLeft := int64(governing.BanUntil.Sub(now) / time.Second)
	if secondsLeft < 0 {
		secondsLeft = 0
	}

	return Status{
		Blocked:     true,
		SecondsLeft: secondsLeft,
		Reason:      governing.Reason,
		BanUntil:    governing.BanUntil,
	}, nil
}

// Ban inserts a new ban record. Existing overlapping bans are left alone.
func (s *Service) Ban(ctx context.Context, subject int64, duration time.Duration, reason string, now time.Time) error {
	if subject <= 0 || duration <= 0 {
		return ErrValidation
	}
	if s.repo == nil {
		return fmt.Errorf("ban repo is nil")
	}
	if now.IsZero() {
		now = s.now().UTC()
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultReason
	}

	return s.repo.Insert(ctx, subject, reason, now.UTC(), now.UTC().Add(duration))
}

// Unban removes every ban record for the subject, active or not.
func (s *Service) Unban(ctx context.Context, subject int64) (int64, error) {
	if subject <= 0 {
		return 0, ErrValidation
	}
	if s.repo == nil {
		return 0, fmt.Errorf("ban repo is nil")
	}

	return s.repo.DeleteForSubject(ctx, subject)
}

// ListActive returns current bans ordered soonest-expiring first.
func (s *Service) ListActive(ctx context.Context, now time.Time) ([]ActiveBan, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("ban repo is nil")
	}
	if now.IsZero() {
		now = s.now().UTC()
	}

	records, err := s.repo.ListActive(ctx, now)
	if err != nil {
		return nil, err
	}

	out := make([]ActiveBan, 0, len(records))
	for _, rec := range records {
		secondsLeft := int64(rec.BanUntil.Sub(now) / time.Second)
		if secondsLeft < 0 {
			secondsLeft = 0
		}
		out = append(out, ActiveBan{
			Subject:     rec.Subject,
			Reason:      rec.Reason,
			BannedAt:    rec.BannedAt,
			BanUntil:    rec.BanUntil,
			SecondsLeft: secondsLeft,
		})
	}

	return out, nil
}
