package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/postgres"
	banssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/bans"
	"github.com/Habibi330/anexo-lookup-bot/internal/transport/http/dto"
)

type banRepoStub struct {
	records []pgrepo.BanRecord
}

func (s *banRepoStub) Insert(ctx context.Context, subject int64, reason string, bannedAt, banUntil time.Time) error {
	s.records = append(s.records, pgrepo.BanRecord{
		Subject:  subject,
		Reason:   reason,
		BannedAt: bannedAt,
		BanUntil: banUntil,
	})
	return nil
}

func (s *banRepoStub) ActiveForSubject(ctx context.Context, subject int64, now time.Time) ([]pgrepo.BanRecord, error) {
	var out []pgrepo.BanRecord
	for _, rec := range s.records {
		if rec.Subject == subject && rec.BanUntil.After(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *banRepoStub) DeleteForSubject(ctx context.Context, subject int64) (int64, error) {
	var kept []pgrepo.BanRecord
	var removed int64
	for _, rec := range s.records {
		if rec.Subject == subject {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return removed, nil
}

func (s *banRepoStub) ListActive(ctx context.Context, now time.Time) ([]pgrepo.BanRecord, error) {
	var out []pgrepo.BanRecord
	for _, rec := range s.records {
		if rec.BanUntil.After(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func TestBansCreateAndList(t *testing.T) {
	repo := &banRepoStub{}
	h := NewBansHandler(banssvc.NewService(repo))

	req := httptest.NewRequest(http.MethodPost, "/admin/bans", strings.NewReader(`{"subject":42,"duration_sec":3600,"reason":"spam"}`))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("create status: got %d want %d, body %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/bans", nil)
	rr = httptest.NewRecorder()
	h.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("list status: got %d want %d", rr.Code, http.StatusOK)
	}

	var resp dto.BanListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Bans) != 1 {
		t.Fatalf("got %d bans, want 1", len(resp.Bans))
	}
	if resp.Bans[0].Subject != 42 || resp.Bans[0].Reason != "spam" {
		t.Fatalf("ban = %+v", resp.Bans[0])
	}
}

func TestBansCreateRejectsZeroDuration(t *testing.T) {
	h := NewBansHandler(banssvc.NewService(&banRepoStub{}))

	req := httptest.NewRequest(http.MethodPost, "/admin/bans", strings.NewReader(`{"subject":42,"duration_sec":0}`))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestBansDelete(t *testing.T) {
	repo := &banRepoStub{records: []pgrepo.BanRecord{{
		Subject:  42,
		Reason:   "spam",
		BannedAt: time.Now().UTC(),
		BanUntil: time.Now().UTC().Add(time.Hour),
	}}}
	h := NewBansHandler(banssvc.NewService(repo))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("subject", "42")
	req := httptest.NewRequest(http.MethodDelete, "/admin/bans/42", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()

	h.Delete(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(repo.records) != 0 {
		t.Fatalf("records left = %d, want 0", len(repo.records))
	}
}

func TestBansDeleteUnknownSubject(t *testing.T) {
	h := NewBansHandler(banssvc.NewService(&banRepoStub{}))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("subject", "99")
	req := httptest.NewRequest(http.MethodDelete, "/admin/bans/99", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()

	h.Delete(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}
