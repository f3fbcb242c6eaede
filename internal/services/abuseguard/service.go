package abuseguard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrValidation = errors.New("validation error")

const (
	ReasonFlood        = "flood detected"
	ReasonRepeatFlood  = "repeat flood"
	ReasonInvalidToken = "repeated invalid token attempts"
	ReasonReusedToken  = "token reuse attempt"
)

const defaultMaxTrackedSubjects = 10000

type BanSink interface {
	Ban(ctx context.Context, subject int64, duration time.Duration, reason string, now time.Time) error
}

type Config struct {
	FloodWindow           time.Duration
	FloodThreshold        int
	FloodFirstBan         time.Duration
	FloodRepeatBan        time.Duration
	InvalidTokenThreshold int
	InvalidTokenBan       time.Duration
	ReusedTokenBan        time.Duration
	MaxTrackedSubjects    int
}

type Decision struct {
	Banned       bool
	Reason       string
	BanDuration  time.Duration
	AttemptsLeft int
}

// subjectState is guarded by its own mutex so one noisy subject never
// serializes the rest.
type subjectState struct {
	mu             sync.Mutex
	commands       []time.Time
	invalidTokens  int
	floodIncidents int
	lastSeen       time.Time
}

// Guard keeps flood windows and invalid-token counters in process memory.
// The state does not survive restarts and is not shared across instances;
// a multi-instance deployment under-counts floods per instance.
type Guard struct {
	mu       sync.Mutex
	subjects map[int64]*subjectState

	bans   BanSink
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

func NewGuard(bans BanSink, cfg Config, logger *zap.Logger) *Guard {
	if cfg.FloodWindow <= 0 {
		cfg.FloodWindow = 10 * time.Second
	}
	if cfg.FloodThreshold <= 0 {
		cfg.FloodThreshold = 5
	}
	if cfg.FloodFirstBan <= 0 {
		cfg.FloodFirstBan = time.Hour
	}
	if cfg.FloodRepeatBan <= 0 {
		cfg.FloodRepeatBan = 24 * time.Hour
	}
	if cfg.InvalidTokenThreshold <= 0 {
		cfg.InvalidTokenThreshold = 3
	}
	if cfg.InvalidTokenBan <= 0 {
		cfg.InvalidTokenBan = 24 * time.Hour
	}
	if cfg.ReusedTokenBan <= 0 {
		cfg.ReusedTokenBan = 24 * time.Hour
	}
	if cfg.MaxTrackedSubjects <= 0 {
		cfg.MaxTrackedSubjects = defaultMaxTrackedSubjects
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Guard{
		subjects: make(map[int64]*subjectState),
		bans:     bans,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// RecordCommand appends the command timestamp to the subject's sliding
// window and escalates to a temporary ban once the window overflows. The
// first flood incident gets the short ban, every later one the long ban.
func (g *Guard) RecordCommand(ctx context.Context, subject int64, now time.Time) (Decision, error) {
	if subject <= 0 {
		return Decision{}, ErrValidation
	}
	if now.IsZero() {
		now = g.now().UTC()
	}

	state := g.stateFor(subject, now)
	state.mu.Lock()
	defer state.mu.Unlock()

	state.commands = append(state.commands, now)
	cutoff := now.Add(-g.cfg.FloodWindow)
	kept := state.commands[:0]
	for _, ts := range state.commands {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	state.commands = kept

	if len(state.commands) <= g.cfg.FloodThreshold {
		return Decision{}, nil
	}

	state.floodIncidents++
	duration := g.cfg.FloodFirstBan
	reason := ReasonFlood
	if state.floodIncidents > 1 {
		duration = g.cfg.FloodRepeatBan
		reason = ReasonRepeatFlood
	}
	state.commands = nil

	if err := g.issueBan(ctx, subject, duration, reason, now); err != nil {
		return Decision{}, err
	}

	return Decision{Banned: true, Reason: reason, BanDuration: duration}, nil
}

// RecordInvalidToken counts failed activation lookups; hitting the
// threshold bans the subject and resets the counter.
func (g *Guard) RecordInvalidToken(ctx context.Context, subject int64, now time.Time) (Decision, error) {
	if subject <= 0 {
		return Decision{}, ErrValidation
	}
	if now.IsZero() {
		now = g.now().UTC()
	}

	state := g.stateFor(subject, now)
	state.mu.Lock()
	defer state.mu.Unlock()

	state.invalidTokens++
	if state.invalidTokens < g.cfg.InvalidTokenThreshold {
		return Decision{AttemptsLeft: g.cfg.InvalidTokenThreshold - state.invalidTokens}, nil
	}

	state.invalidTokens = 0
	if err := g.issueBan(ctx, subject, g.cfg.InvalidTokenBan, ReasonInvalidToken, now); err != nil {
		return Decision{}, err
	}

	return Decision{Banned: true, Reason: ReasonInvalidToken, BanDuration: g.cfg.InvalidTokenBan}, nil
}

// RecordReusedToken bans immediately, without a warning threshold.
func (g *Guard) RecordReusedToken(ctx context.Context, subject int64, now time.Time) (Decision, error) {
	if subject <= 0 {
		return Decision{}, ErrValidation
	}
	if now.IsZero() {
		now = g.now().UTC()
	}

	if err := g.issueBan(ctx, subject, g.cfg.ReusedTokenBan, ReasonReusedToken, now); err != nil {
		return Decision{}, err
	}

	return Decision{Banned: true, Reason: ReasonReusedToken, BanDuration: g.cfg.ReusedTokenBan}, nil
}

// ResetInvalidTokens clears the failed-activation counter after a
// successful activation.
func (g *Guard) ResetInvalidTokens(subject int64) {
	if subject <= 0 {
		return
	}

	g.mu.Lock()
	state, ok := g.subjects[subject]
	g.mu.Unlock()
	if !ok {
		return
	}

	state.mu.Lock()
	state.invalidTokens = 0
	state.mu.Unlock()
}

func (g *Guard) issueBan(ctx context.Context, subject int64, duration time.Duration, reason string, now time.Time) error {
	if g.bans == nil {
		return fmt.Errorf("ban sink is nil")
	}
	if err := g.bans.Ban(ctx, subject, duration, reason, now); err != nil {
		return fmt.Errorf("issue automatic ban: %w", err)
	}

	g.logger.Warn("subject temporarily banned",
		zap.Int64("subject", subject),
		zap.String("reason", reason),
		zap.Duration("duration", duration),
	)
	return nil
}

func (g *Guard) stateFor(subject int64, now time.Time) *subjectState {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.subjects[subject]
	if !ok {
		if len(g.subjects) >= g.cfg.MaxTrackedSubjects {
			g.evictIdleLocked(now)
		}
		state = &subjectState{}
		g.subjects[subject] = state
	}
	state.lastSeen = now
	return state
}

// evictIdleLocked drops subjects idle for longer than the flood window and
// with no pending counters; if nothing qualifies, the oldest entry goes.
// Counters are guarded by state.mu, so each entry is locked for the read;
// the g.mu -> state.mu order matches stateFor, which releases g.mu before
// any caller touches state.mu.
func (g *Guard) evictIdleLocked(now time.Time) {
	cutoff := now.Add(-10 * g.cfg.FloodWindow)

	var oldestID int64
	var oldestSeen time.Time
	for id, state := range g.subjects {
		state.mu.Lock()
		idle := state.invalidTokens == 0 && state.floodIncidents == 0
		state.mu.Unlock()
		if idle && state.lastSeen.Before(cutoff) {
			delete(g.subjects, id)
			continue
		}
		if oldestID == 0 || state.lastSeen.Before(oldestSeen) {
			oldestID = id
			oldestSeen = state.lastSeen
		}
	}

	if len(g.subjects) >= g.cfg.MaxTrackedSubjects && oldestID != 0 {
		delete(g.subjects, oldestID)
	}
}
