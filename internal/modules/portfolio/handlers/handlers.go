// Package handlers exposes portfolio group reference data over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	repo *portfolio.Repository
	log  zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(repo *portfolio.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes mounts portfolio routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio-groups", func(r chi.Router) {
		r.Get("/", h.HandleListGroups)
		r.Get("/{ticker}", h.HandleGetGroup)
		r.Get("/{ticker}/accounts", h.HandleGroupAccounts)
	})
}

// HandleListGroups returns all portfolio groups.
// GET /api/portfolio-groups
func (h *Handler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.repo.ListGroups(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if groups == nil {
		groups = []portfolio.Group{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_groups": groups,
		"count":            len(groups),
	})
}

// HandleGetGroup returns one portfolio group.
// GET /api/portfolio-groups/{ticker}
func (h *Handler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	group, err := h.repo.GetGroup(r.Context(), ticker)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if group == nil {
		h.writeError(w, http.StatusNotFound, "portfolio group not found: "+ticker)
		return
	}

	h.writeJSON(w, http.StatusOK, group)
}

// HandleGroupAccounts returns the accounts of one portfolio group.
// GET /api/portfolio-groups/{ticker}/accounts
func (h *Handler) HandleGroupAccounts(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	group, err := h.repo.GetGroup(r.Context(), ticker)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if group == nil {
		h.writeError(w, http.StatusNotFound, "portfolio group not found: "+ticker)
		return
	}

	accounts, err := h.repo.GroupAccountRecords(r.Context(), ticker)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if accounts == nil {
		accounts = []portfolio.AccountRecord{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"group_ticker": ticker,
		"accounts":     accounts,
		"count":        len(accounts),
	})
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
