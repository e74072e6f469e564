package handler

import (
	"net/http"

	"github.com/set-night/chatapp/internal/middleware"
)

func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	summary, err := h.usage.Summary(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err, "Failed to fetch usage")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
