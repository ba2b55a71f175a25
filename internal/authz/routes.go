package authz

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the permission surface.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions/effective", h.Effective)
	r.Get("/navigation", h.Navigation)
}
