package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"localclaw/internal/middleware"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandlers handles health check and readiness endpoints
type HealthHandlers struct {
	checks  map[string]HealthCheck
	timeout time.Duration
	started time.Time
	logger  *zap.Logger
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(checks map[string]HealthCheck, timeout time.Duration, logger *zap.Logger) *HealthHandlers {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthHandlers{
		checks:  checks,
		timeout: timeout,
		started: time.Now(),
		logger:  logger,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

// HealthCheck handles GET /health
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} HealthStatus
// @Router /health [get]
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, h.status("healthy", nil))
}

// ReadinessCheck handles GET /health/ready
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} HealthStatus
// @Failure 503 {object} HealthStatus
// @Router /health/ready [get]
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("service", name), zap.Error(err))
			services[name] = "unhealthy"
			ready = false
			continue
		}
		services[name] = "healthy"
	}

	if !ready {
		return c.JSON(http.StatusServiceUnavailable, h.status("not_ready", services))
	}
	return c.JSON(http.StatusOK, h.status("ready", services))
}

func (h *HealthHandlers) status(state string, services map[string]string) *HealthStatus {
	return &HealthStatus{
		Status:    state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   middleware.Version,
	}
}
