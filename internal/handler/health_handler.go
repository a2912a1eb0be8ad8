package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/courtbook/courtbook/pkg/database"
	"github.com/courtbook/courtbook/pkg/redis"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	db    *database.PostgresDB
	redis *redis.Client
}

// NewHealthHandler creates a new HealthHandler. Either dependency may
// be nil for processes that do not use it.
func NewHealthHandler(db *database.PostgresDB, redis *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// ReadyResponse reports per-component readiness.
type ReadyResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health is the liveness probe. It only proves the process responds.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready is the readiness probe. It checks every backing store and
// returns 503 until all of them answer.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := []struct {
		name  string
		check func(context.Context) error
	}{
		{name: "database"},
		{name: "redis"},
	}
	if h.db != nil {
		checks[0].check = h.db.HealthCheck
	}
	if h.redis != nil {
		checks[1].check = h.redis.HealthCheck
	}

	components := make(map[string]string, len(checks))
	ready := true
	for _, probe := range checks {
		if probe.check == nil {
			components[probe.name] = "not configured"
			continue
		}
		if err := probe.check(ctx); err != nil {
			components[probe.name] = "unhealthy: " + err.Error()
			ready = false
		} else {
			components[probe.name] = "healthy"
		}
	}

	resp := ReadyResponse{
		Status:     "ready",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}
	if !ready {
		resp.Status = "not ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
