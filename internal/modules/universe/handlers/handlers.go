// Package handlers exposes the security master over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/modules/universe"
)

// Handler handles universe HTTP requests
type Handler struct {
	repo    *universe.Repository
	service *universe.Service
	log     zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(repo *universe.Repository, service *universe.Service, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
		log:     log.With().Str("handler", "universe").Logger(),
	}
}

// RegisterRoutes mounts universe routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/securities", func(r chi.Router) {
		r.Get("/", h.HandleSearch)
		r.Get("/{cusip}", h.HandleGetByCUSIP)
		r.Get("/{cusip}/analytics", h.HandleGetAnalytics)
	})
}

// HandleSearch searches the security master.
// GET /api/securities?q=IBM&limit=20
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	securities, err := h.repo.Search(r.Context(), q, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if securities == nil {
		securities = []universe.Security{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"securities": securities,
		"count":      len(securities),
	})
}

// HandleGetByCUSIP returns one security record.
// GET /api/securities/{cusip}
func (h *Handler) HandleGetByCUSIP(w http.ResponseWriter, r *http.Request) {
	cusip := chi.URLParam(r, "cusip")

	security, err := h.repo.GetByCUSIP(r.Context(), cusip)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if security == nil {
		h.writeError(w, http.StatusNotFound, "security not found: "+cusip)
		return
	}

	h.writeJSON(w, http.StatusOK, security)
}

// HandleGetAnalytics returns the security with allocation-ready analytics,
// refreshing from the vendor when the stored snapshot is stale.
// GET /api/securities/{cusip}/analytics
func (h *Handler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	cusip := chi.URLParam(r, "cusip")

	security, err := h.service.SecurityWithAnalytics(r.Context(), cusip)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, security)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
