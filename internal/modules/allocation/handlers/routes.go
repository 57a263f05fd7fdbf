package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts allocation routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/allocations", func(r chi.Router) {
		r.Post("/", h.HandleAllocate)
		r.Post("/preview", h.HandlePreview)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGetByID)
	})
}
