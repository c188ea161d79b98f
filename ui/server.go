package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"expeval/adapters/excel"
	"expeval/app"
	"expeval/domain/core"
	"expeval/domain/metric"
)

// Server represents the experiment results API server
type Server struct {
	router  *gin.Engine
	service *app.EvaluationService
	reports *excel.ReportWriter
	logger  *slog.Logger
}

// Config holds API server configuration
type Config struct {
	Port    string
	GinMode string
}

// NewServer creates a new API server instance
func NewServer(config Config, service *app.EvaluationService, logger *slog.Logger) *Server {
	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:  gin.New(),
		service: service,
		reports: excel.NewReportWriter(),
		logger:  logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.POST("/experiments/:id/results", s.handleEvaluate)
	api.POST("/experiments/:id/results/export", s.handleExport)
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	s.logger.Info("starting experiment results API", "addr", addr)
	return s.router.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// evaluateBody is the request payload: the metric to evaluate plus the
// refresh flag. The experiment comes from the path.
type evaluateBody struct {
	Metric       metric.Definition `json:"metric"`
	ForceRefresh bool              `json:"force_refresh"`
}

// handleEvaluate runs the evaluation pipeline for one experiment/metric.
func (s *Server) handleEvaluate(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}

	resp, err := s.service.Evaluate(c.Request.Context(), req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleExport evaluates and streams the result as an xlsx workbook.
func (s *Server) handleExport(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}

	resp, err := s.service.Evaluate(c.Request.Context(), req)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="experiment-%s.xlsx"`, req.ExperimentID))
	if err := s.reports.Write(c.Writer, *resp); err != nil {
		s.logger.Error("failed to write results workbook", "experiment_id", req.ExperimentID, "error", err)
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

func (s *Server) bindRequest(c *gin.Context) (app.EvaluationRequest, bool) {
	expID, err := core.ParseExperimentID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return app.EvaluationRequest{}, false
	}

	var body evaluateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return app.EvaluationRequest{}, false
	}

	req := app.EvaluationRequest{
		ExperimentID: expID,
		Metric:       body.Metric,
		ForceRefresh: body.ForceRefresh,
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return app.EvaluationRequest{}, false
	}
	return req, true
}

// renderError maps pipeline errors onto HTTP statuses. Missing records are
// 404, bad input is 400, everything else is 500.
func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrMissingExperimentID),
		errors.Is(err, core.ErrInvalidMetric),
		errors.Is(err, core.ErrUnsupportedMetricType),
		errors.Is(err, core.ErrNotASourceQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrMissingControl):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error("evaluation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
