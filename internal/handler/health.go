package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/gatehouse/internal/infrastructure/redis"
	"github.com/yourorg/gatehouse/pkg/database"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db     *database.ConnectionPool
	redis  *redis.Client
	logger *slog.Logger
}

func NewHealthHandler(db *database.ConnectionPool, redisClient *redis.Client, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{db: db, redis: redisClient, logger: logger}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz - simple liveness check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz - returns 200 only if all dependencies answer
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if err := h.db.Health(ctx); err != nil {
		checks["database"] = "unavailable"
		ready = false
		h.logger.Warn("readiness: database check failed", slog.String("error", err.Error()))
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			// The embedding cache is an optimization, not a dependency.
			checks["redis"] = "unavailable"
			h.logger.Warn("readiness: redis check failed", slog.String("error", err.Error()))
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	resp := ReadinessResponse{Status: "ready", Checks: checks}
	if !ready {
		status = http.StatusServiceUnavailable
		resp.Status = "not ready"
	}
	writeJSON(w, status, resp)
}
