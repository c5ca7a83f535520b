package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"objgate/utils"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 3 * time.Second

// Pinger is the part of the storage backend readiness depends on
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController serves liveness and readiness probes
type HealthController struct {
	version string
	backend Pinger
	started time.Time
	logger  *log.Logger
}

// NewHealthController creates a new health controller
func NewHealthController(version string, backend Pinger) *HealthController {
	return &HealthController{
		version: version,
		backend: backend,
		started: time.Now(),
		logger:  utils.NewCustomLogger("HEALTH"),
	}
}

// Live reports that the process is serving requests
func (c *HealthController) Live(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(c.started).Round(time.Second).String(),
		"version":   c.version,
	})
}

// Ready reports whether the storage backend currently answers
func (c *HealthController) Ready(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), readyTimeout)
	defer cancel()

	if err := c.backend.Ping(pingCtx); err != nil {
		c.logger.Printf("Readiness check failed: %v", err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
