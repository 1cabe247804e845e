package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/vendorlens/reconciler/internal/export"
	"github.com/vendorlens/reconciler/internal/job"
	"github.com/vendorlens/reconciler/internal/process"
	"github.com/vendorlens/reconciler/internal/repository"
)

// Server exposes the reconciliation pipeline over HTTP.
type Server struct {
	logger    *slog.Logger
	processor *process.Processor
	exporter  *export.Service
	jobs      *job.Manager
	reports   repository.ReportStore

	httpSrv *http.Server
}

func New(
	logger *slog.Logger,
	processor *process.Processor,
	exporter *export.Service,
	jobs *job.Manager,
	reports repository.ReportStore,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:    logger,
		processor: processor,
		exporter:  exporter,
		jobs:      jobs,
		reports:   reports,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	v1 := r.Group("/api/v1")
	{
		v1.POST("/process", s.handleProcess)
		v1.GET("/jobs/:id", s.handleJobStatus)
		v1.POST("/jobs/:id/cancel", s.handleJobCancel)
		v1.POST("/jobs/:id/retry", s.handleJobRetry)
		v1.POST("/exports", s.handleExportStart)
		v1.GET("/exports/:id/download", s.handleExportDownload)
		v1.GET("/reports", s.handleReportList)
		v1.GET("/reports/:id", s.handleReportGet)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http.listen", "addr", addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
