// Package server exposes the extraction, duplicate-check, correction, and
// template lifecycle surfaces over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/corrections"
	"github.com/expenseflow/expense-ocr/internal/duplicate"
	"github.com/expenseflow/expense-ocr/internal/pipeline"
	"github.com/expenseflow/expense-ocr/internal/templates"
)

// Server wires the HTTP routes to the pipeline and lifecycle services.
type Server struct {
	echo        *echo.Echo
	processor   *pipeline.Processor
	detector    *duplicate.Detector
	corrections *corrections.Service
	miner       *corrections.Miner
	manager     *templates.Manager
	cfg         common.RetrainingConfig
	logger      *slog.Logger
}

func New(
	processor *pipeline.Processor,
	detector *duplicate.Detector,
	correctionSvc *corrections.Service,
	manager *templates.Manager,
	cfg common.RetrainingConfig,
	logger *slog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// make the assigned id visible to service-layer log lines
			req := c.Request()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			c.SetRequest(req.WithContext(common.WithRequestID(req.Context(), reqID)))

			start := time.Now()
			err := next(c)
			logger.Info("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return err
		}
	})

	s := &Server{
		echo:        e,
		processor:   processor,
		detector:    detector,
		corrections: correctionSvc,
		miner:       corrections.NewMiner(),
		manager:     manager,
		cfg:         cfg,
		logger:      logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/receipts/scan", s.handleScan)
	v1.POST("/expenses/duplicate-check", s.handleDuplicateCheck)

	v1.POST("/corrections", s.handleRecordCorrection)
	v1.GET("/corrections/stats", s.handleCorrectionStats)
	v1.GET("/corrections/patterns", s.handlePatterns)
	v1.GET("/corrections/export", s.handleExport)

	v1.POST("/retraining/jobs", s.handleStartJob)
	v1.GET("/retraining/jobs", s.handleListJobs)
	v1.GET("/retraining/jobs/:id", s.handleGetJob)

	v1.GET("/templates", s.handleListTemplates)
	v1.POST("/templates/:version/deploy", s.handleDeploy)
	v1.POST("/templates/rollback", s.handleRollback)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
