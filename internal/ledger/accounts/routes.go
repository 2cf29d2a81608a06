package accounts

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches chart of accounts routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.List)
	r.Post("/accounts", h.Create)
	r.Post("/accounts/{id}/deactivate", h.Deactivate)
}
