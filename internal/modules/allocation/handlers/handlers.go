// Package handlers exposes the allocation engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/modules/allocation"
)

// Handler handles allocation HTTP requests
type Handler struct {
	service *allocation.Service
	audit   *allocation.AuditRepository
	log     zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(service *allocation.Service, audit *allocation.AuditRepository, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		audit:   audit,
		log:     log.With().Str("handler", "allocation").Logger(),
	}
}

// HandleAllocate runs an allocation and records it to the audit trail.
// POST /api/allocations
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Allocate(r.Context(), req)
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandlePreview computes an allocation without persisting it.
// POST /api/allocations/preview
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req allocation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Preview(r.Context(), req)
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleList returns recent allocation history.
// GET /api/allocations?limit=50
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.audit.List(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []allocation.AuditEntry{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": entries,
		"count":       len(entries),
	})
}

// HandleGetByID returns one stored allocation result.
// GET /api/allocations/{id}
func (h *Handler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.audit.GetByID(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		h.writeError(w, http.StatusNotFound, "allocation not found: "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// writeAllocationError maps engine error types onto HTTP statuses:
// malformed requests are 400, infeasible inputs 422, provider failures 502.
func (h *Handler) writeAllocationError(w http.ResponseWriter, err error) {
	var validationErr *allocation.ValidationError
	var infeasibleErr *allocation.InfeasibleError

	switch {
	case errors.As(err, &validationErr):
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]string{"code": validationErr.Code, "message": validationErr.Message},
		})
	case errors.As(err, &infeasibleErr):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": map[string]string{"code": infeasibleErr.Code, "message": infeasibleErr.Message},
		})
	default:
		h.log.Error().Err(err).Msg("Allocation failed")
		h.writeError(w, http.StatusBadGateway, err.Error())
	}
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
