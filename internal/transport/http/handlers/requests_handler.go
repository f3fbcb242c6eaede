package handlers

import (
	"context"
	"net/http"
	"strconv"

	pgrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/postgres"
	"github.com/Habibi330/anexo-lookup-bot/internal/transport/http/dto"
	httperrors "github.com/Habibi330/anexo-lookup-bot/internal/transport/http/errors"
)

const defaultRequestsLimit = 100

type MissingRequestLister interface {
	ListRecent(ctx context.Context, limit int) ([]pgrepo.MissingRequestRecord, error)
}

type RequestsHandler struct {
	requests MissingRequestLister
}

func NewRequestsHandler(requests MissingRequestLister) *RequestsHandler {
	return &RequestsHandler{requests: requests}
}

func (h *RequestsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.requests == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests store is unavailable")
		return
	}

	limit := defaultRequestsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid limit")
			return
		}
		limit = parsed
	}

	recs, err := h.requests.ListRecent(r.Context(), limit)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list requests")
		return
	}

	resp := dto.MissingRequestsResponse{Requests: make([]dto.MissingRequestResponse, 0, len(recs))}
	for _, rec := range recs {
		resp.Requests = append(resp.Requests, dto.MissingRequestResponse{
			UserID:    rec.UserID,
			Domain:    rec.Domain,
			CreatedAt: rec.CreatedAt,
		})
	}
	httperrors.Write(w, http.StatusOK, resp)
}
