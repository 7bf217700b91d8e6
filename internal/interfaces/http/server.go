// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/garyjia/school-fees/internal/application/service"
	"github.com/garyjia/school-fees/internal/auth"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxUploadBytes  int64
	ServiceName     string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxUploadBytes:  8 << 20,
		ServiceName:     "school-fees",
	}
}

// Services groups the application services the handlers call
type Services struct {
	Vouchers      service.VoucherService
	Payments      service.PaymentService
	FeeStructures service.FeeStructureService
	Roster        service.RosterService
}

// HealthCheck reports whether one dependency is usable
type HealthCheck = func(ctx context.Context) error

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	resolver   auth.Resolver
	health     map[string]HealthCheck
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	services Services,
	resolver auth.Resolver,
	health map[string]HealthCheck,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if config.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = config.MaxUploadBytes
	}

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		resolver: resolver,
		health:   health,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(cors.New(s.corsConfig()))
	s.router.Use(s.authMiddleware())
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.ExposeHeaders = []string{"Content-Disposition"}

	origins := s.config.CORSOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
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

// authMiddleware resolves the caller once per request. Requests without
// credentials pass through; each service decides whether it needs a caller.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.resolver == nil {
			c.Next()
			return
		}

		caller, err := s.resolver.Resolve(c.Request)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
				return
			}
			s.logger.Error("Failed to resolve caller", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		if caller != nil {
			c.Set(callerKey, caller)
		}
		c.Next()
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger, s.config.MaxUploadBytes)

	s.router.GET("/health", s.healthCheck)

	fees := s.router.Group("/fees")
	{
		fees.POST("/vouchers", h.IssueVouchers)
		fees.GET("/vouchers", h.ListVouchers)
		fees.DELETE("/vouchers", h.DeleteVoucher)
		fees.GET("/vouchers/export", h.ExportVouchers)
		fees.GET("/vouchers/:id", h.GetVoucher)
		fees.GET("/vouchers/:id/history", h.VoucherHistory)

		fees.POST("/payment", h.SubmitPayment)
		fees.POST("/verify-payment", h.VerifyPayment)
		fees.GET("/submissions", h.ListSubmissions)
		fees.GET("/submissions/:id/proof", h.DownloadProof)

		fees.GET("/structure", h.ListFeeStructures)
		fees.POST("/structure", h.CreateFeeStructure)
		fees.PUT("/structure", h.UpdateFeeStructure)
		fees.DELETE("/structure", h.DeleteFeeStructure)
	}

	s.router.POST("/classes", h.CreateClass)
	s.router.GET("/classes", h.ListClasses)
	s.router.POST("/students", h.CreateStudent)
	s.router.GET("/students", h.ListStudents)
}

// healthCheck handles GET /health. Any failing component turns the answer into a 503.
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:     "healthy",
		Service:    s.config.ServiceName,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: make(map[string]ComponentHealth, len(s.health)),
	}
	code := http.StatusOK
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			resp.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = ComponentHealth{Healthy: true}
	}
	c.JSON(code, resp)
}

// Start starts the HTTP server and blocks until ctx is cancelled or serving fails
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

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
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
