package handlers

import (
	"net/http"

	httperrors "github.com/Habibi330/anexo-lookup-bot/internal/transport/http/errors"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httperrors.Write(w, http.StatusOK, map[string]any{"ok": true})
}
