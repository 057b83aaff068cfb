package handlers

import (
	"net/http"
	"time"

	"github.com/memkeep/memkeep/pkg/api/response"
	"github.com/memkeep/memkeep/pkg/memory"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	engine  *memory.Engine
	version string
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(eng *memory.Engine, version string) *HealthHandler {
	return &HealthHandler{
		engine:  eng,
		version: version,
		started: time.Now(),
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.engine.Healthy() {
		response.JSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	} else {
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
		})
	}
}

// Ready handles the /ready endpoint (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.engine.Healthy() {
		response.JSON(w, http.StatusOK, map[string]bool{
			"ready": true,
		})
	} else {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
	}
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
