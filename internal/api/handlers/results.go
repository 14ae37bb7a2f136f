package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/services"
	"github.com/taxtrack/itax-automation/internal/utils"
)

// ResultsHandler serves recent extraction results from the cache.
type ResultsHandler struct {
	cache  services.CacheService
	logger *logrus.Logger
}

// NewResultsHandler creates a results handler.
func NewResultsHandler(cache services.CacheService, logger *logrus.Logger) *ResultsHandler {
	return &ResultsHandler{cache: cache, logger: logger}
}

// GetResult returns the most recent cached result for a task and PIN.
func (h *ResultsHandler) GetResult(c *gin.Context) {
	taskName := c.Param("task")
	pin := utils.CleanPIN(c.Param("pin"))

	if !utils.IsValidPIN(pin) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Bad Request",
			"message":   "malformed PIN",
			"timestamp": time.Now(),
		})
		return
	}

	payload, err := h.cache.Get(c.Request.Context(), services.ResultCacheKey(taskName, pin))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not Found",
			"message":   "no recent result for this PIN, run the task first",
			"timestamp": time.Now(),
		})
		return
	}

	c.Data(http.StatusOK, "application/json", []byte(payload))
}
