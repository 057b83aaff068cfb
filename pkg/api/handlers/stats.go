package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/memkeep/memkeep/pkg/api/response"
	"github.com/memkeep/memkeep/pkg/memory"
)

// StatsHandler handles per-user memory statistics.
type StatsHandler struct {
	engine *memory.Engine
	logger handlerLogger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(eng *memory.Engine, log handlerLogger) *StatsHandler {
	return &StatsHandler{
		engine: eng,
		logger: log,
	}
}

// Stats handles GET /api/v1/users/{userID}/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	stats, err := h.engine.Stats(ctx, userID)
	if err != nil {
		if response.HTTPStatusFromError(err) >= http.StatusInternalServerError {
			h.logger.Error("Failed to compute stats", "user_id", userID, "error", err)
		}
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, stats)
}
