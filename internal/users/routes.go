package users

import (
	"github.com/go-chi/chi/v5"

	"github.com/agrovista-erp/agrovista-erp/internal/authz"
)

// MountRoutes attaches user administration endpoints.
func (h *Handler) MountRoutes(r chi.Router, mw authz.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireCapability("admin.usuarios"))
		r.Get("/users", h.List)
		r.Get("/users/{id}", h.Show)
		r.Put("/users/{id}/role", h.SetRole)
		r.Put("/users/{id}/active", h.SetActive)
		r.Put("/users/{id}/overrides", h.SetOverride)
		r.Delete("/users/{id}/overrides/{capability}", h.ClearOverride)
	})
}
