package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/countingbot/internal/store"
)

const healthCheckTimeout = 5 * time.Second

// GatewayStatus reports whether the gateway session is up.
type GatewayStatus interface {
	Connected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    store.Repository
	gateway GatewayStatus
}

// NewHealthHandler creates a new health handler. gateway may be nil.
func NewHealthHandler(repo store.Repository, gateway GatewayStatus) *HealthHandler {
	return &HealthHandler{repo: repo, gateway: gateway}
}

// Health returns the health status of the bot and its dependencies. Only the
// database decides the status code; the gateway is informational.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		checks["database"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.gateway != nil {
		if h.gateway.Connected() {
			checks["gateway"] = "connected"
		} else {
			checks["gateway"] = "disconnected"
		}
	}

	JSON(w, statusCode, map[string]any{"status": status, "checks": checks})
}
