package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jlancaster7/allocator-backend/internal/database"
	"github.com/jlancaster7/allocator-backend/internal/events"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	refdataDB *database.DB
	auditDB   *database.DB
	bus       *events.Bus
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(refdataDB, auditDB *database.DB, bus *events.Bus, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		refdataDB: refdataDB,
		auditDB:   auditDB,
		bus:       bus,
		startedAt: time.Now().UTC(),
		log:       log.With().Str("component", "system_handlers").Logger(),
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	SecurityCount  int     `json:"security_count"`
	GroupCount     int     `json:"group_count"`
	AllocationsRun int     `json:"allocations_run"`
	Subscribers    int     `json:"event_subscribers"`
}

// HandleStatus returns process and data health.
// GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemStats()

	resp := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
	}

	if err := h.refdataDB.Conn().QueryRowContext(r.Context(),
		"SELECT COUNT(*) FROM securities").Scan(&resp.SecurityCount); err != nil {
		h.log.Warn().Err(err).Msg("Failed to count securities")
	}
	if err := h.refdataDB.Conn().QueryRowContext(r.Context(),
		"SELECT COUNT(*) FROM portfolio_groups").Scan(&resp.GroupCount); err != nil {
		h.log.Warn().Err(err).Msg("Failed to count portfolio groups")
	}
	if err := h.auditDB.Conn().QueryRowContext(r.Context(),
		"SELECT COUNT(*) FROM allocations").Scan(&resp.AllocationsRun); err != nil {
		h.log.Warn().Err(err).Msg("Failed to count allocations")
	}
	if h.bus != nil {
		resp.Subscribers = h.bus.SubscriberCount()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

// systemStats calculates CPU and RAM usage percentages.
// Uses a 100ms CPU sample so the endpoint stays fast.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
