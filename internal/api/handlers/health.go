package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/stockanalyzer/internal/api/response"
	"github.com/wonny/stockanalyzer/internal/service/pricecache"
)

// CacheReporter exposes price cache counters
type CacheReporter interface {
	Stats() pricecache.Stats
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	startTime time.Time
	version   string
	cache     CacheReporter
}

// NewHealthHandler creates a new health handler. cache may be nil.
func NewHealthHandler(version string, cache CacheReporter) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		cache:     cache,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Timestamp     time.Time         `json:"timestamp"`
	Cache         *pricecache.Stats `json:"cache,omitempty"`
}

// Health returns simple liveness check
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Detailed returns version, uptime and cache counters
// GET /health/detailed
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now(),
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		resp.Cache = &stats
	}
	response.JSON(w, http.StatusOK, resp)
}
