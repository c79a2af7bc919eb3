package ledgerhttp

import (
	"context"
	"net/http"

	"github.com/invoicely/invoicely/internal/platform/httpx"
)

// SettingsService stores the invoice wizard defaults.
type SettingsService interface {
	All(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, values map[string]string) error
}

// WithSettings enables the /api/settings routes.
func (h *Handler) WithSettings(settings SettingsService) *Handler {
	h.settings = settings
	return h
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.All(r.Context())
	if err != nil {
		h.respond(w, "load settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, values)
}

// handlePutSettings upserts the posted keys; an empty value clears a key.
func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := httpx.DecodeJSON(r, &values); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.settings.Save(r.Context(), values); err != nil {
		h.respond(w, "save settings", err)
		return
	}
	h.handleGetSettings(w, r)
}
