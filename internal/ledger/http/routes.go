package ledgerhttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers invoice, settings and draft endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/api/invoices", func(r chi.Router) {
		r.Get("/", h.handleSearch)
		r.Post("/", h.handleCreate)
		r.Delete("/", h.handlePurge)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
	if h.settings != nil {
		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/", h.handleGetSettings)
			r.Put("/", h.handlePutSettings)
		})
	}
	if h.drafts == nil {
		return
	}
	r.Route("/api/drafts", func(r chi.Router) {
		r.Post("/", h.handleStartDraft)
		r.Get("/{id}", h.handleGetDraft)
		r.Put("/{id}", h.handlePatchDraft)
		r.Delete("/{id}", h.handleDiscardDraft)
		r.Post("/{id}/commit", h.handleCommitDraft)
	})
}
