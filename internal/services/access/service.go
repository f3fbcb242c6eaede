package access

import (
	"context"
	"time"

	"github.com/Habibi330/anexo-lookup-bot/internal/services/abuseguard"
	"github.com/Habibi330/anexo-lookup-bot/internal/services/bans"
)

type BanChecker interface {
	IsBlocked(ctx context.Context, subject int64, now time.Time) (bans.Status, error)
}

type FloodGuard interface {
	RecordCommand(ctx context.Context, subject int64, now time.Time) (abuseguard.Decision, error)
}

// Decision is the single verdict a command handler acts on before doing
// any work for the subject.
type Decision struct {
	Allowed     bool
	Reason      string
	SecondsLeft int64
	BanUntil    time.Time
}

type Service struct {
	bans  BanChecker
	guard FloodGuard
	now   func() time.Time
}

func NewService(bans BanChecker, guard FloodGuard) *Service {
	return &Service{
		bans:  bans,
		guard: guard,
		now:   time.Now,
	}
}

// CheckAndRecordCommand gates one incoming command. An existing ban wins
// without feeding the flood window; otherwise the command is counted and
// may itself trip a fresh ban.
func (s *Service) CheckAndRecordCommand(ctx context.Context, subject int64) (Decision, error) {
	now := s.now().UTC()

	status, err := s.bans.IsBlocked(ctx, subject, now)
	if err != nil {
		return Decision{}, err
	}
	if status.Blocked {
		return Decision{
			Allowed:     false,
			Reason:      status.Reason,
			SecondsLeft: status.SecondsLeft,
			BanUntil:    status.BanUntil,
		}, nil
	}

	verdict, err := s.guard.RecordCommand(ctx, subject, now)
	if err != nil {
		return Decision{}, err
	}
	if verdict.Banned {
		return Decision{
			Allowed:     false,
			Reason:      verdict.Reason,
			SecondsLeft: int64(verdict.BanDuration / time.Second),
			BanUntil:    now.Add(verdict.BanDuration),
		}, nil
	}

	return Decision{Allowed: true}, nil
}
