// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/bid-reconciler/internal/application/dispatcher"
	"github.com/garyjia/bid-reconciler/internal/application/service"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/sheet"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxUploadBytes caps workbook uploads
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   0, // event streams stay open
		MaxUploadBytes: 20 << 20,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config        ServerConfig
	httpServer    *http.Server
	router        *gin.Engine
	importService service.ImportService
	dispatcher    dispatcher.Dispatcher
	decoder       *sheet.Decoder
	handlers      *Handlers
	logger        Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	importService service.ImportService,
	events dispatcher.Dispatcher,
	decoder *sheet.Decoder,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if config.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = config.MaxUploadBytes
	}

	server := &Server{
		config:        config,
		router:        router,
		importService: importService,
		dispatcher:    events,
		decoder:       decoder,
		logger:        logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.importService, s.dispatcher, s.decoder, s.config.MaxUploadBytes, s.logger)
	s.handlers = handlers

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		// Runs
		api.POST("/runs", handlers.StartRun)
		api.GET("/runs/:id", handlers.GetRun)
		api.DELETE("/runs/:id", handlers.CancelRun)
		api.POST("/runs/:id/parse", handlers.ParseSheet)
		api.POST("/runs/:id/mapping", handlers.MapColumns)
		api.POST("/runs/:id/match", handlers.MatchItems)
		api.POST("/runs/:id/items/:itemId/assign", handlers.AssignToBoq)
		api.POST("/runs/:id/items/:itemId/extra", handlers.MarkAsExtra)
		api.POST("/runs/:id/normalize", handlers.Normalize)
		api.POST("/runs/:id/validate", handlers.Validate)
		api.POST("/runs/:id/commit", handlers.Commit)
		api.POST("/runs/:id/rewind", handlers.Rewind)
		api.GET("/runs/:id/report", handlers.DownloadReport)
		api.GET("/runs/:id/events", handlers.StreamEvents)

		// Tenders
		api.PUT("/tenders/:tenderId/boq", handlers.ReplaceBoq)
		api.GET("/tenders/:tenderId/submissions/:bidderId", handlers.GetSubmission)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")
	s.handlers.CloseStreams()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
