package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/memkeep/memkeep/pkg/api/response"
	"github.com/memkeep/memkeep/pkg/memory"
)

// RecallHandler handles recall query endpoints.
type RecallHandler struct {
	engine *memory.Engine
	logger handlerLogger
}

// NewRecallHandler creates a new recall handler.
func NewRecallHandler(eng *memory.Engine, log handlerLogger) *RecallHandler {
	return &RecallHandler{
		engine: eng,
		logger: log,
	}
}

// Recall handles GET /api/v1/users/{userID}/recall
func (h *RecallHandler) Recall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	query := r.URL.Query().Get("q")
	if query == "" {
		query = r.URL.Query().Get("query")
	}

	opts := memory.RecallOptions{
		Strategy: memory.Strategy(r.URL.Query().Get("strategy")),
		Kind:     memory.Kind(r.URL.Query().Get("kind")),
		Tags:     splitTags(r.URL.Query().Get("tags")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Invalid threshold", getRequestID(ctx))
			return
		}
		opts.Threshold = &t
	}

	result, err := h.engine.Recall(ctx, userID, query, opts)
	if err != nil {
		if response.HTTPStatusFromError(err) >= http.StatusInternalServerError {
			h.logger.Error("Recall failed", "user_id", userID, "error", err)
		}
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, result)
}
