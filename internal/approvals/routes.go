package approvals

import (
	"github.com/go-chi/chi/v5"

	"github.com/agrovista-erp/agrovista-erp/internal/authz"
)

// MountRoutes attaches the approval workflow surface. Review and queue
// listings are reserved for administrators.
func (h *Handler) MountRoutes(r chi.Router, mw authz.Middleware) {
	r.Post("/approvals", h.Create)
	r.Get("/approvals/check", h.Check)
	r.Get("/actions/authorize", h.Authorize)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAdmin)
		r.Get("/approvals/pending", h.ListPending)
		r.Get("/approvals/history", h.ListHistory)
		r.Post("/approvals/{id}/review", h.Review)
	})
}
