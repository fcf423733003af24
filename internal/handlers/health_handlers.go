package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is any dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db      Pinger
	cache   Pinger
	storage Pinger
	version string
	started time.Time
}

// NewHealthHandlers creates a new health handlers instance. cache and storage
// may be nil when the service runs without them.
func NewHealthHandlers(db, cache, storage Pinger, version string) *HealthHandlers {
	return &HealthHandlers{
		db:      db,
		cache:   cache,
		storage: storage,
		version: version,
		started: time.Now().UTC(),
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

// HealthCheck godoc
// @Summary Dependency health
// @Tags health
// @Produce json
// @Success 200 {object} HealthStatus
// @Failure 503 {object} HealthStatus
// @Router /health [get]
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}

	dbOK := h.check(ctx, health, "database", h.db)
	h.check(ctx, health, "redis", h.cache)
	h.check(ctx, health, "storage", h.storage)

	statusCode := http.StatusOK
	if !dbOK {
		health.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, health)
}

func (h *HealthHandlers) check(ctx context.Context, health *HealthStatus, name string, p Pinger) bool {
	if p == nil {
		health.Services[name] = "disabled"
		return true
	}
	if err := p.Ping(ctx); err != nil {
		health.Services[name] = "unhealthy"
		health.Status = "degraded"
		return false
	}
	health.Services[name] = "healthy"
	return true
}

// LivenessCheck determines if the application is running (basic liveness probe)
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
