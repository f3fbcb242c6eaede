package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	banssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/bans"
	"github.com/Habibi330/anexo-lookup-bot/internal/transport/http/dto"
	httperrors "github.com/Habibi330/anexo-lookup-bot/internal/transport/http/errors"
)

type BansHandler struct {
	bans *banssvc.Service
}

func NewBansHandler(bans *banssvc.Service) *BansHandler {
	return &BansHandler{bans: bans}
}

func (h *BansHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.bans == nil {
		writeInternal(w, "BANS_SERVICE_UNAVAILABLE", "bans service is unavailable")
		return
	}

	active, err := h.bans.ListActive(r.Context(), time.Now().UTC())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list bans")
		return
	}

	resp := dto.BanListResponse{Bans: make([]dto.BanResponse, 0, len(active))}
	for _, ban := range active {
		resp.Bans = append(resp.Bans, dto.BanResponse{
			Subject:     ban.Subject,
			Reason:      ban.Reason,
			BannedAt:    ban.BannedAt,
			BanUntil:    ban.BanUntil,
			SecondsLeft: ban.SecondsLeft,
		})
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *BansHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.bans == nil {
		writeInternal(w, "BANS_SERVICE_UNAVAILABLE", "bans service is unavailable")
		return
	}

	var req dto.CreateBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	now := time.Now().UTC()
	duration := time.Duration(req.DurationSec) * time.Second
	if err := h.bans.Ban(r.Context(), req.Subject, duration, req.Reason, now); err != nil {
		if errors.Is(err, banssvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "subject and duration must be positive")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to create ban")
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.BanResponse{
		Subject:     req.Subject,
		Reason:      req.Reason,
		BannedAt:    now,
		BanUntil:    now.Add(duration),
		SecondsLeft: req.DurationSec,
	})
}

func (h *BansHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.bans == nil {
		writeInternal(w, "BANS_SERVICE_UNAVAILABLE", "bans service is unavailable")
		return
	}

	subject, err := strconv.ParseInt(chi.URLParam(r, "subject"), 10, 64)
	if err != nil || subject <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid subject id")
		return
	}

	removed, err := h.bans.Unban(r.Context(), subject)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to remove bans")
		return
	}
	if removed == 0 {
		writeNotFound(w, "NOT_FOUND", "no bans for subject")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UnbanResponse{Subject: subject, Removed: removed})
}
