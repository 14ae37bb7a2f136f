package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/batch"
	"github.com/taxtrack/itax-automation/internal/models"
)

// BatchHandler exposes the batch control surface: start, stop,
// progress.
type BatchHandler struct {
	orchestrator *batch.Orchestrator
	logger       *logrus.Logger
}

// NewBatchHandler creates a batch handler.
func NewBatchHandler(orchestrator *batch.Orchestrator, logger *logrus.Logger) *BatchHandler {
	return &BatchHandler{orchestrator: orchestrator, logger: logger}
}

// StartRunRequest is the body of POST /runs.
type StartRunRequest struct {
	Task       string  `json:"task" binding:"required"`
	IDs        []int64 `json:"ids,omitempty"`
	StartIndex int     `json:"start_index,omitempty"`
	BatchSize  int     `json:"batch_size,omitempty"`
}

// StartRun launches a batch run in the background.
func (h *BatchHandler) StartRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Bad Request",
			"message":   err.Error(),
			"timestamp": time.Now(),
		})
		return
	}

	sel := models.Selection{
		IDs:        req.IDs,
		StartIndex: req.StartIndex,
		BatchSize:  req.BatchSize,
	}

	runID, err := h.orchestrator.Start(req.Task, sel)
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrUnknownTask):
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Not Found",
				"message":   err.Error(),
				"tasks":     h.orchestrator.TaskNames(),
				"timestamp": time.Now(),
			})
		case errors.Is(err, batch.ErrRunActive):
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Conflict",
				"message":   "a batch run is already active",
				"progress":  h.orchestrator.Progress(),
				"timestamp": time.Now(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal Server Error",
				"message":   err.Error(),
				"timestamp": time.Now(),
			})
		}
		return
	}

	h.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"task":   req.Task,
	}).Info("Batch run accepted")

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":    runID,
		"task":      req.Task,
		"timestamp": time.Now(),
	})
}

// StopRun asks the active run to halt at the next company boundary.
func (h *BatchHandler) StopRun(c *gin.Context) {
	if !h.orchestrator.Stop() {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not Found",
			"message":   "no active run",
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stopping":  true,
		"message":   "run will halt after the current company",
		"timestamp": time.Now(),
	})
}

// GetProgress returns the live progress snapshot.
func (h *BatchHandler) GetProgress(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.Progress())
}

// ListTasks returns the runnable task names.
func (h *BatchHandler) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.orchestrator.TaskNames()})
}
