package journals

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches journal entry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.List)
	r.Post("/entries", h.Create)
	r.Get("/entries/{id}", h.Get)
	r.Put("/entries/{id}/lines", h.UpdateLines)
	r.Post("/entries/{id}/post", h.Post)
	r.Post("/entries/{id}/reverse", h.Reverse)
}
