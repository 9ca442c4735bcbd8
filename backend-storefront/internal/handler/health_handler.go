package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is a dependency that can report whether it is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports the service and its optional stores
type HealthHandler struct {
	service string
	checks  map[string]HealthChecker
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. Nil checkers are skipped so
// disabled stores do not show up.
func NewHealthHandler(service string, checks map[string]HealthChecker) *HealthHandler {
	h := &HealthHandler{service: service, checks: map[string]HealthChecker{}, timeout: 2 * time.Second}
	for name, checker := range checks {
		if checker != nil {
			h.checks[name] = checker
		}
	}
	return h
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, checker := range h.checks {
		if err := checker.HealthCheck(ctx); err != nil {
			results[name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": h.service,
		"checks":  results,
	})
}
