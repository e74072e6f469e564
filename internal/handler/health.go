package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	serviceName    = "Claude AI Clone API"
	serviceVersion = "0.1.0"
)

type healthResponse struct {
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
	APIKeyConfigured bool   `json:"apiKeyConfigured"`
}

// Health handles GET /health and GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:           "healthy",
		Timestamp:        time.Now().UTC().Format(time.RFC3339Nano),
		APIKeyConfigured: h.relay != nil && h.relay.Configured(),
	}

	status := http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			slog.Error("health check: store unreachable", "error", err)
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"version": serviceVersion,
		"status":  "running",
		"endpoints": map[string]string{
			"health":  "/health",
			"api":     "/api/*",
			"metrics": "/metrics",
		},
	})
}
