package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/iconidentify/grabbot/internal/repository"
	"github.com/iconidentify/grabbot/internal/service"
	"github.com/iconidentify/grabbot/internal/worker"
)

var startTime = time.Now()

// DeliveryReporter exposes delivery counters.
type DeliveryReporter interface {
	Stats() service.DeliveryStats
}

// DispatchReporter exposes dispatcher counters.
type DispatchReporter interface {
	Stats() worker.DispatcherStats
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ledger      repository.LinkRepository
	delivery    DeliveryReporter
	dispatch    DispatchReporter
	downloadDir string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ledger repository.LinkRepository, delivery DeliveryReporter, dispatch DispatchReporter, downloadDir string) *HealthHandler {
	return &HealthHandler{
		ledger:      ledger,
		delivery:    delivery,
		dispatch:    dispatch,
		downloadDir: downloadDir,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Error     string       `json:"error,omitempty"`
	Ledger    *LedgerStats `json:"ledger,omitempty"`
}

// LedgerStats contains request ledger statistics.
type LedgerStats struct {
	Entries    int `json:"entries"`
	Evicted    int `json:"evicted"`
	MaxEntries int `json:"max_entries"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. The ledger must answer and the
// download area must exist.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)

	stats, err := h.ledger.Stats(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "error", Timestamp: now, Error: "ledger unavailable"})
		return
	}

	if info, err := os.Stat(h.downloadDir); err != nil || !info.IsDir() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "error", Timestamp: now, Error: "download area unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now,
		Ledger:    toLedgerStats(stats),
	})
}

// SystemStats is the JSON response for GET /api/v1/stats.
type SystemStats struct {
	Uptime        int64                  `json:"uptime_seconds"`
	UptimeHuman   string                 `json:"uptime_human"`
	MemAllocMB    int64                  `json:"mem_alloc_mb"`
	MemSysMB      int64                  `json:"mem_sys_mb"`
	NumGoroutines int                    `json:"num_goroutines"`
	Ledger        *LedgerStats           `json:"ledger,omitempty"`
	Delivery      service.DeliveryStats  `json:"delivery"`
	Dispatcher    worker.DispatcherStats `json:"dispatcher"`
	Storage       *service.StorageStats  `json:"storage,omitempty"`
}

// Stats handles GET /api/v1/stats - process and delivery statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)
	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		Delivery:      h.delivery.Stats(),
		Dispatcher:    h.dispatch.Stats(),
	}

	if ledger, err := h.ledger.Stats(r.Context()); err == nil {
		stats.Ledger = toLedgerStats(ledger)
	}
	if storage, err := service.DownloadAreaStats(h.downloadDir); err == nil {
		stats.Storage = &storage
	}

	writeJSON(w, http.StatusOK, stats)
}

func toLedgerStats(s *repository.LedgerStats) *LedgerStats {
	return &LedgerStats{
		Entries:    s.Entries,
		Evicted:    s.Evicted,
		MaxEntries: s.MaxEntries,
	}
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
