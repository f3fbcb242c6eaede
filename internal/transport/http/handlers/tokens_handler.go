package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	tokenssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/tokens"
	"github.com/Habibi330/anexo-lookup-bot/internal/transport/http/dto"
	httperrors "github.com/Habibi330/anexo-lookup-bot/internal/transport/http/errors"
)

const defaultUnusedTokensLimit = 500

type TokensHandler struct {
	tokens *tokenssvc.Service
}

func NewTokensHandler(tokens *tokenssvc.Service) *TokensHandler {
	return &TokensHandler{tokens: tokens}
}

func (h *TokensHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeInternal(w, "TOKENS_SERVICE_UNAVAILABLE", "tokens service is unavailable")
		return
	}

	var req dto.CreateTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	codes, err := h.tokens.CreateBatch(r.Context(), req.PlanDays, req.Quantity)
	if err != nil {
		if errors.Is(err, tokenssvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "plan must be 7, 15 or 30 days and quantity between 1 and 50")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to create tokens")
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.CreateTokensResponse{
		PlanDays: req.PlanDays,
		Codes:    codes,
	})
}

func (h *TokensHandler) Unused(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeInternal(w, "TOKENS_SERVICE_UNAVAILABLE", "tokens service is unavailable")
		return
	}

	limit := defaultUnusedTokensLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid limit")
			return
		}
		limit = parsed
	}

	groups, err := h.tokens.ListUnused(r.Context(), limit)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list tokens")
		return
	}

	resp := dto.UnusedTokensResponse{Groups: make([]dto.TokenPlanGroup, 0, len(groups))}
	for _, group := range groups {
		resp.Groups = append(resp.Groups, dto.TokenPlanGroup{
			PlanDays: group.PlanDays,
			Codes:    group.Codes,
		})
	}
	httperrors.Write(w, http.StatusOK, resp)
}
