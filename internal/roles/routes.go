package roles

import (
	"github.com/go-chi/chi/v5"

	"github.com/agrovista-erp/agrovista-erp/internal/authz"
)

// MountRoutes attaches role administration endpoints.
func (h *Handler) MountRoutes(r chi.Router, mw authz.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireCapability("admin.roles"))
		r.Get("/roles", h.List)
		r.Post("/roles", h.Create)
		r.Get("/roles/{id}", h.Show)
		r.Put("/roles/{id}", h.Update)
		r.Delete("/roles/{id}", h.Delete)
		r.Put("/roles/{id}/grants", h.SetGrants)
		r.Put("/roles/{id}/action-permissions", h.SetActionPermission)
	})
}
