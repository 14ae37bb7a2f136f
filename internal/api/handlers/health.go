package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/services"
)

// DatabaseHealth is the slice of the store the health endpoint needs.
type DatabaseHealth interface {
	Health(ctx context.Context) map[string]interface{}
}

// HealthHandler aggregates component health.
type HealthHandler struct {
	cache   services.CacheService
	factory services.BrowserFactory
	db      DatabaseHealth
	logger  *logrus.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(cache services.CacheService, factory services.BrowserFactory, db DatabaseHealth, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{cache: cache, factory: factory, db: db, logger: logger}
}

// GetHealth returns the aggregated health of every component.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	components := gin.H{
		"cache":   h.cache.Health(),
		"browser": h.factory.Health(),
	}

	status := http.StatusOK
	overall := "healthy"

	if h.db != nil {
		dbHealth := h.db.Health(c.Request.Context())
		components["database"] = dbHealth
		if dbHealth["status"] != "healthy" {
			overall = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"components": components,
		"timestamp":  time.Now(),
	})
}

// GetLiveness reports that the process is up.
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now()})
}

// GetReadiness reports whether the service can take work.
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	if h.db != nil {
		if h.db.Health(c.Request.Context())["status"] != "healthy" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not ready",
				"timestamp": time.Now(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now()})
}
