package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/api/handlers"
	"github.com/taxtrack/itax-automation/internal/api/middleware"
	"github.com/taxtrack/itax-automation/internal/app"
	"github.com/taxtrack/itax-automation/internal/config"
)

// Server represents the HTTP server
type Server struct {
	Router   *gin.Engine
	config   *config.Config
	logger   *logrus.Logger
	services *app.Container
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, logger *logrus.Logger, services *app.Container) *Server {
	server := &Server{
		config:   cfg,
		logger:   logger,
		services: services,
	}

	server.setupRouter()
	return server
}

// setupRouter configures the router with all routes and middleware
func (s *Server) setupRouter() {
	if s.config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.Router = gin.New()

	// Global middleware
	s.Router.Use(middleware.Logger(s.logger))
	s.Router.Use(middleware.Recovery(s.logger))
	s.Router.Use(middleware.CORS(s.config.Security.CORS))
	s.Router.Use(middleware.Security())
	s.Router.Use(middleware.RequestID())

	rateLimiter := middleware.NewRateLimiter(s.config.Security.RateLimit)
	s.Router.Use(rateLimiter.Middleware())

	// Health check endpoints
	healthHandler := handlers.NewHealthHandler(s.services.Cache, s.services.Factory, s.services.Store, s.logger)
	s.Router.GET("/health", healthHandler.GetHealth)
	s.Router.GET("/health/ready", healthHandler.GetReadiness)
	s.Router.GET("/health/live", healthHandler.GetLiveness)

	// API v1 routes
	v1 := s.Router.Group("/api/v1")
	{
		batchHandler := handlers.NewBatchHandler(s.services.Orchestrator, s.logger)
		runs := v1.Group("/runs")
		{
			runs.POST("", batchHandler.StartRun)
			runs.POST("/stop", batchHandler.StopRun)
			runs.GET("/progress", batchHandler.GetProgress)
		}
		v1.GET("/tasks", batchHandler.ListTasks)

		resultsHandler := handlers.NewResultsHandler(s.services.Cache, s.logger)
		v1.GET("/results/:task/:pin", resultsHandler.GetResult)

		reportsHandler := handlers.NewReportsHandler(s.services.Store, s.logger)
		v1.GET("/reports", reportsHandler.ListRuns)
		v1.GET("/reports/:id/download", reportsHandler.DownloadReport)

		cache := v1.Group("/cache")
		{
			cacheHandler := handlers.NewCacheHandler(s.services.Cache, s.logger)
			cache.GET("/stats", cacheHandler.GetStats)
			cache.DELETE("/clear", cacheHandler.Clear)
			cache.DELETE("/:key", cacheHandler.Delete)
		}
	}

	// 404 handler
	s.Router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not Found",
			"message":   "The requested resource was not found",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
		})
	})

	// 405 handler
	s.Router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":     "Method Not Allowed",
			"message":   "The requested method is not allowed for this resource",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		})
	})
}
