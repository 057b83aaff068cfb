package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/memkeep/memkeep/pkg/api/response"
	"github.com/memkeep/memkeep/pkg/usage"
)

// UsageHandler handles daily usage ledger endpoints.
type UsageHandler struct {
	ledger *usage.Ledger
	logger handlerLogger
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(ledger *usage.Ledger, log handlerLogger) *UsageHandler {
	return &UsageHandler{
		ledger: ledger,
		logger: log,
	}
}

// DailyUsage handles GET /api/v1/users/{userID}/usage
// An empty date query param reports today (UTC).
func (h *UsageHandler) DailyUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	day := r.URL.Query().Get("date")
	if day != "" {
		parsed, err := usage.ParseDay(day)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
			return
		}
		day = parsed
	}

	report, err := h.ledger.DailyUsage(ctx, userID, day)
	if err != nil {
		if response.HTTPStatusFromError(err) >= http.StatusInternalServerError {
			h.logger.Error("Failed to read usage", "user_id", userID, "error", err)
		}
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, report)
}
