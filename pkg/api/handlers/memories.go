// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/memkeep/memkeep/pkg/api/middleware"
	"github.com/memkeep/memkeep/pkg/api/response"
	"github.com/memkeep/memkeep/pkg/memory"
)

// MemoryHandler handles memory CRUD endpoints.
type MemoryHandler struct {
	engine *memory.Engine
	logger handlerLogger
}

type handlerLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(eng *memory.Engine, log handlerLogger) *MemoryHandler {
	return &MemoryHandler{
		engine: eng,
		logger: log,
	}
}

// --- Request/Response types ---

type createMemoryRequest struct {
	Title         string         `json:"title,omitempty"`
	Content       string         `json:"content"`
	Kind          string         `json:"kind,omitempty"`
	Importance    float64        `json:"importance,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	EmbeddingMode string         `json:"embedding_mode,omitempty"`
}

type updateMemoryRequest struct {
	Title         *string        `json:"title,omitempty"`
	Content       *string        `json:"content,omitempty"`
	Kind          *string        `json:"kind,omitempty"`
	Importance    *float64       `json:"importance,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	EmbeddingMode string         `json:"embedding_mode,omitempty"`
}

type listMemoriesResponse struct {
	Memories []*memory.Memory `json:"memories"`
	Count    int              `json:"count"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// Create handles POST /api/v1/users/{userID}/memories
func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	var req createMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	mode, err := memory.ParseEmbeddingMode(req.EmbeddingMode)
	if err != nil {
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	meta, err := memory.ValuesFromJSON(req.Metadata)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	result, err := h.engine.AddMemory(ctx, userID, req.Content, memory.AddOptions{
		Title:      req.Title,
		Kind:       memory.Kind(req.Kind),
		Importance: req.Importance,
		Tags:       req.Tags,
		Metadata:   meta,
		Mode:       mode,
	})
	if err != nil {
		h.logAndRespond(w, r, "Failed to create memory", userID, err)
		return
	}

	response.JSON(w, http.StatusCreated, result)
}

// List handles GET /api/v1/users/{userID}/memories
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	filter := memory.ListFilter{
		Kind:            memory.Kind(r.URL.Query().Get("kind")),
		Tags:            splitTags(r.URL.Query().Get("tags")),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
		Limit:           20,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	memories, err := h.engine.ListMemories(ctx, userID, filter)
	if err != nil {
		h.logAndRespond(w, r, "Failed to list memories", userID, err)
		return
	}

	response.JSON(w, http.StatusOK, listMemoriesResponse{
		Memories: memories,
		Count:    len(memories),
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// Get handles GET /api/v1/users/{userID}/memories/{id}
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	id := chi.URLParam(r, "id")

	m, err := h.engine.GetMemory(ctx, userID, id)
	if err != nil {
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, m)
}

// Update handles PATCH /api/v1/users/{userID}/memories/{id}
func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	id := chi.URLParam(r, "id")

	var req updateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	mode, err := memory.ParseEmbeddingMode(req.EmbeddingMode)
	if err != nil {
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	opts := memory.UpdateOptions{
		Title:      req.Title,
		Content:    req.Content,
		Importance: req.Importance,
		Tags:       req.Tags,
		Mode:       mode,
	}
	if req.Kind != nil {
		kind := memory.Kind(*req.Kind)
		opts.Kind = &kind
	}
	if req.Metadata != nil {
		meta, err := memory.ValuesFromJSON(req.Metadata)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
			return
		}
		opts.Metadata = meta
	}

	result, err := h.engine.UpdateMemory(ctx, userID, id, opts)
	if err != nil {
		h.logAndRespond(w, r, "Failed to update memory", userID, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// Delete handles DELETE /api/v1/users/{userID}/memories/{id}
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	id := chi.URLParam(r, "id")

	if err := h.engine.DeleteMemory(ctx, userID, id); err != nil {
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusNoContent, nil)
}

// Archive handles POST /api/v1/users/{userID}/memories/{id}/archive
func (h *MemoryHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	id := chi.URLParam(r, "id")

	if err := h.engine.ArchiveMemory(ctx, userID, id); err != nil {
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]bool{"archived": true})
}

// logAndRespond logs server-side failures and writes the mapped error.
func (h *MemoryHandler) logAndRespond(w http.ResponseWriter, r *http.Request, msg, userID string, err error) {
	ctx := r.Context()
	if response.HTTPStatusFromError(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, "user_id", userID, "error", err)
	}
	response.HandleError(w, err, getRequestID(ctx))
}

// splitTags parses a comma-separated tag list.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// getRequestID extracts request ID from context
func getRequestID(ctx context.Context) string {
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		return reqID
	}
	return "unknown"
}
