// Package http exposes the workflow engine over a gin HTTP API.
// Handlers only translate requests; all rules live in the application layer.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/content-workflow/internal/application/service"
	"github.com/garyjia/content-workflow/internal/application/workflow"
	"github.com/garyjia/content-workflow/internal/domain/event"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	shutdownTimeout = 10 * time.Second
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
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// API is what the routes call into
type API struct {
	Engine  workflow.WorkflowEngine
	Content service.ContentService
	History service.HistoryService
	Export  service.ExportService
}

// HealthFunc reports overall health plus per-component detail for /health
type HealthFunc func(ctx context.Context) (healthy bool, components interface{})

// Option customizes a Server
type Option func(*Server)

// WithHealthCheck makes /health report fn's result, 503 when unhealthy
func WithHealthCheck(fn HealthFunc) Option {
	return func(s *Server) {
		s.handlers.health = fn
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer builds the router for api
func NewServer(config ServerConfig, api API, logger Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(api, logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(gin.Recovery(), requestID(), s.accessLog())
	s.routes()
	return s
}

// requestID propagates the caller's X-Request-ID or assigns a new one. The id
// also becomes the correlation id of events raised by the request.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(event.WithCorrelation(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info("HTTP request",
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) routes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	api.POST("/workflows/:id/items/:itemId/start", h.StartWorkflow)

	items := api.Group("/items")
	items.POST("", h.CreateItem)
	items.GET("/:id/status", h.GetStatus)
	items.POST("/:id/complete-state", h.CompleteState)
	items.POST("/:id/discard-state", h.DiscardState)
	items.POST("/:id/complete-workflow", h.CompleteWorkflow)
	items.POST("/:id/discard-workflow", h.DiscardWorkflow)
	items.GET("/:id/logs", h.GetLogs)
	items.GET("/:id/logs/export", h.ExportLogs)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop drains in-flight requests for up to shutdownTimeout
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
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

// Address returns the listen address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
