package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/memkeep/memkeep/pkg/api/response"
	"github.com/memkeep/memkeep/pkg/memory"
)

// RepairHandler handles embedding repair endpoints.
type RepairHandler struct {
	engine *memory.Engine
	logger handlerLogger
}

// NewRepairHandler creates a new repair handler.
func NewRepairHandler(eng *memory.Engine, log handlerLogger) *RepairHandler {
	return &RepairHandler{
		engine: eng,
		logger: log,
	}
}

// RepairUser handles POST /api/v1/users/{userID}/repair
func (h *RepairHandler) RepairUser(w http.ResponseWriter, r *http.Request) {
	h.repair(w, r, chi.URLParam(r, "userID"))
}

// RepairAll handles POST /api/v1/repair and sweeps every user.
func (h *RepairHandler) RepairAll(w http.ResponseWriter, r *http.Request) {
	h.repair(w, r, "")
}

func (h *RepairHandler) repair(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	summary, err := h.engine.RepairEmbeddings(ctx, userID)
	if err != nil {
		if response.HTTPStatusFromError(err) >= http.StatusInternalServerError {
			h.logger.Error("Repair failed", "user_id", userID, "error", err)
		}
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	h.logger.Info("Repair pass finished", "user_id", userID, "updated", summary.Updated, "failed", summary.Failed)
	response.JSON(w, http.StatusOK, summary)
}
