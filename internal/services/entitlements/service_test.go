package entitlements

import (
	"context"
	"errors"
	"testing"
	"time"

	pgrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/postgres"
)

type tokenStoreStub struct {
	activateRec pgrepo.ActivationRecord
	activateErr error
	activeRec   pgrepo.ActiveTokenRecord
	activeErr   error

	lastCode   string
	lastUserID int64
}

func (s *tokenStoreStub) Activate(ctx context.Context, code string, userID int64, now time.Time) (pgrepo.ActivationRecord, error) {
	s.lastCode = code
	s.lastUserID = userID
	if s.activateErr != nil {
		return pgrepo.ActivationRecord{}, s.activateErr
	}
	return s.activateRec, nil
}

func (s *tokenStoreStub) ActiveForUser(ctx context.Context, userID int64, now time.Time) (pgrepo.ActiveTokenRecord, error) {
	if s.activeErr != nil {
		return pgrepo.ActiveTokenRecord{}, s.activeErr
	}
	return s.activeRec, nil
}

type userStoreStub struct {
	count int
	err   error

	lastDayKey  string
	lastCeiling int
}

func (s *userStoreStub) ConsumeFreeSearch(ctx context.Context, userID int64, dayKey string, ceiling int) (int, error) {
	s.lastDayKey = dayKey
	s.lastCeiling = ceiling
	if s.err != nil {
		return 0, s.err
	}
	return s.count, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func newTestService(tokens *tokenStoreStub, users *userStoreStub) *Service {
	svc := NewService(tokens, users, Config{DailyFreeSearches: 10, MinTokenLength: 10})
	svc.now = fixedNow
	return svc
}

func TestResolveActiveToken(t *testing.T) {
	expires := fixedNow().Add(49 * time.Hour)
	tokens := &tokenStoreStub{
		activeRec: pgrepo.ActiveTokenRecord{ID: 1, Code: "AAAA-BBBB-CCCC-DDDD", PlanDays: 7, ExpiresAt: expires},
	}
	svc := newTestService(tokens, &userStoreStub{})

	ent, err := svc.Resolve(context.Background(), 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ent.Kind != KindActiveToken {
		t.Fatalf("kind = %d, want active token", ent.Kind)
	}
	if ent.PlanDays != 7 {
		t.Fatalf("plan days = %d, want 7", ent.PlanDays)
	}
	if ent.DaysLeft != 2 {
		t.Fatalf("days left = %d, want 2", ent.DaysLeft)
	}
}

func TestResolveNoToken(t *testing.T) {
	tokens := &tokenStoreStub{activeErr: pgrepo.ErrTokenNotFound}
	svc := newTestService(tokens, &userStoreStub{})

	ent, err := svc.Resolve(context.Background(), 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ent.Kind != KindNone {
		t.Fatalf("kind = %d, want none", ent.Kind)
	}
}

func TestActivateTokenTrimsAndPasses(t *testing.T) {
	expires := fixedNow().AddDate(0, 0, 30)
	tokens := &tokenStoreStub{
		activateRec: pgrepo.ActivationRecord{TokenID: 5, PlanDays: 30, ExpiresAt: expires},
	}
	svc := newTestService(tokens, &userStoreStub{})

	act, err := svc.ActivateToken(context.Background(), 42, "  AAAA-BBBB-CCCC-DDDD  ")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if act.PlanDays != 30 {
		t.Fatalf("plan days = %d, want 30", act.PlanDays)
	}
	if tokens.lastCode != "AAAA-BBBB-CCCC-DDDD" {
		t.Fatalf("code passed to store = %q", tokens.lastCode)
	}
	if tokens.lastUserID != 42 {
		t.Fatalf("user id passed to store = %d", tokens.lastUserID)
	}
}

func TestActivateTokenTooShort(t *testing.T) {
	svc := newTestService(&tokenStoreStub{}, &userStoreStub{})

	if _, err := svc.ActivateToken(context.Background(), 42, "short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestActivateTokenMapsStoreErrors(t *testing.T) {
	cases := []struct {
		name     string
		storeErr error
		wantErr  error
	}{
		{"not found", pgrepo.ErrTokenNotFound, ErrTokenNotFound},
		{"already used", pgrepo.ErrTokenUsed, ErrTokenUsed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := &tokenStoreStub{activateErr: tc.storeErr}
			svc := newTestService(tokens, &userStoreStub{})

			if _, err := svc.ActivateToken(context.Background(), 42, "AAAA-BBBB-CCCC-DDDD"); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestConsumeFreeQuota(t *testing.T) {
	users := &userStoreStub{count: 3}
	svc := newTestService(&tokenStoreStub{}, users)

	remaining, err := svc.ConsumeFreeQuota(context.Background(), 42)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if remaining != 7 {
		t.Fatalf("remaining = %d, want 7", remaining)
	}
	if users.lastDayKey != "2025-03-10" {
		t.Fatalf("day key = %q, want 2025-03-10", users.lastDayKey)
	}
	if users.lastCeiling != 10 {
		t.Fatalf("ceiling = %d, want 10", users.lastCeiling)
	}
}

func TestConsumeFreeQuotaExceeded(t *testing.T) {
	users := &userStoreStub{err: pgrepo.ErrFreeQuotaExceeded}
	svc := newTestService(&tokenStoreStub{}, users)

	if _, err := svc.ConsumeFreeQuota(context.Background(), 42); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want quota exceeded", err)
	}
}
