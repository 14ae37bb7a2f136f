package handlers

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/storage"
)

// ReportsHandler serves run history and report downloads.
type ReportsHandler struct {
	runs   storage.RunStore
	logger *logrus.Logger
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(runs storage.RunStore, logger *logrus.Logger) *ReportsHandler {
	return &ReportsHandler{runs: runs, logger: logger}
}

// ListRuns returns recent batch runs, newest first.
func (h *ReportsHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal Server Error",
			"message":   "failed to list runs",
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// DownloadReport streams the Excel report for a run.
func (h *ReportsHandler) DownloadReport(c *gin.Context) {
	runID := c.Param("id")

	runs, err := h.runs.ListRuns(c.Request.Context(), 100)
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up run")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal Server Error",
			"message":   "failed to look up run",
			"timestamp": time.Now(),
		})
		return
	}

	for _, run := range runs {
		if run.ID != runID {
			continue
		}
		if _, err := os.Stat(run.ReportPath); err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Not Found",
				"message":   "report file no longer exists",
				"timestamp": time.Now(),
			})
			return
		}
		c.FileAttachment(run.ReportPath, runID+".xlsx")
		return
	}

	c.JSON(http.StatusNotFound, gin.H{
		"error":     "Not Found",
		"message":   "unknown run " + runID,
		"timestamp": time.Now(),
	})
}
