package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/services"
)

// CacheHandler manages the result cache.
type CacheHandler struct {
	cache  services.CacheService
	logger *logrus.Logger
}

// NewCacheHandler creates a cache handler.
func NewCacheHandler(cache services.CacheService, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, logger: logger}
}

// GetStats returns cache statistics.
func (h *CacheHandler) GetStats(c *gin.Context) {
	stats, err := h.cache.GetStats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read cache stats")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal Server Error",
			"message":   "failed to read cache stats",
			"timestamp": time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Clear drops every cache entry.
func (h *CacheHandler) Clear(c *gin.Context) {
	if err := h.cache.Clear(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Failed to clear cache")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal Server Error",
			"message":   "failed to clear cache",
			"timestamp": time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true, "timestamp": time.Now()})
}

// Delete removes a single cache entry.
func (h *CacheHandler) Delete(c *gin.Context) {
	key := c.Param("key")
	if err := h.cache.Delete(c.Request.Context(), key); err != nil {
		h.logger.WithError(err).Error("Failed to delete cache entry")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal Server Error",
			"message":   "failed to delete cache entry",
			"timestamp": time.Now(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": key, "timestamp": time.Now()})
}
