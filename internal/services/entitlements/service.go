package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Habibi330/anexo-lookup-bot/internal/domain/rules"
	pgrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/postgres"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenUsed     = errors.New("token already used")
	ErrQuotaExceeded = errors.New("daily free quota exceeded")
)

type Kind int

const (
	KindNone Kind = iota
	KindActiveToken
)

type TokenStore interface {
	Activate(ctx context.Context, code string, userID int64, now time.Time) (pgrepo.ActivationRecord, error)
	ActiveForUser(ctx context.Context, userID int64, now time.Time) (pgrepo.ActiveTokenRecord, error)
}

type UserStore interface {
	ConsumeFreeSearch(ctx context.Context, userID int64, dayKey string, ceiling int) (int, error)
}

type Config struct {
	DailyFreeSearches int
	MinTokenLength    int
}

type Entitlement struct {
	Kind      Kind
	PlanDays  int
	ExpiresAt time.Time
	DaysLeft  int
}

type Activation struct {
	PlanDays  int
	ExpiresAt time.Time
}

type Service struct {
	tokens TokenStore
	users  UserStore
	cfg    Config
	now    func() time.Time
}

func NewService(tokens TokenStore, users UserStore, cfg Config) *Service {
	if cfg.DailyFreeSearches <= 0 {
		cfg.DailyFreeSearches = 10
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = 10
	}

	return &Service{
		tokens: tokens,
		users:  users,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Resolve returns the user's current access level. Only the consumed token
// with the furthest future expiry matters; a token expiring exactly now no
// longer counts.
func (s *Service) Resolve(ctx context.Context, userID int64) (Entitlement, error) {
	if userID <= 0 {
		return Entitlement{}, ErrValidation
	}
	if s.tokens == nil {
		return Entitlement{}, fmt.Errorf("token store is nil")
	}

	now := s.now().UTC()
	rec, err := s.tokens.ActiveForUser(ctx, userID, now)
	if err != nil {
		if errors.Is(err, pgrepo.ErrTokenNotFound) {
			return Entitlement{Kind: KindNone}, nil
		}
		return Entitlement{}, err
	}

	return Entitlement{
		Kind:      KindActiveToken,
		PlanDays:  rec.PlanDays,
		ExpiresAt: rec.ExpiresAt,
		DaysLeft:  rules.WholeDaysLeft(now, rec.ExpiresAt),
	}, nil
}

// ActivateToken consumes the code for the user. At most one caller wins a
// race on the same code; the rest observe ErrTokenUsed.
func (s *Service) ActivateToken(ctx context.Context, userID int64, code string) (Activation, error) {
	if userID <= 0 {
		return Activation{}, ErrValidation
	}
	if s.tokens == nil {
		return Activation{}, fmt.Errorf("token store is nil")
	}

	code = strings.TrimSpace(code)
	if len(code) < s.cfg.MinTokenLength {
		return Activation{}, ErrValidation
	}

	rec, err := s.tokens.Activate(ctx, code, userID, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, pgrepo.ErrTokenNotFound):
			return Activation{}, ErrTokenNotFound
		case errors.Is(err, pgrepo.ErrTokenUsed):
			return Activation{}, ErrTokenUsed
		default:
			return Activation{}, err
		}
	}

	return Activation{PlanDays: rec.PlanDays, ExpiresAt: rec.ExpiresAt}, nil
}

// ConsumeFreeQuota spends one free search for today (UTC) and returns how
// many remain. The counter resets on the first call of a new day.
func (s *Service) ConsumeFreeQuota(ctx context.Context, userID int64) (int, error) {
	if userID <= 0 {
		return 0, ErrValidation
	}
	if s.users == nil {
		return 0, fmt.Errorf("user store is nil")
	}

	now := s.now().UTC()
	count, err := s.users.ConsumeFreeSearch(ctx, userID, rules.DayKey(now), s.cfg.DailyFreeSearches)
	if err != nil {
		if errors.Is(err, pgrepo.ErrFreeQuotaExceeded) {
			return 0, ErrQuotaExceeded
		}
		return 0, err
	}

	remaining := s.cfg.DailyFreeSearches - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
