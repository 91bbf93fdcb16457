// Package http provides the HTTP server, router assembly and shared middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jobHTTP "github.com/SUNET/transcribe-backend/internal/job/http"
	keysHTTP "github.com/SUNET/transcribe-backend/internal/keys/http"
	mediaHTTP "github.com/SUNET/transcribe-backend/internal/media/http"
	notificationHTTP "github.com/SUNET/transcribe-backend/internal/notification/http"
	userHTTP "github.com/SUNET/transcribe-backend/internal/user/http"
)

// Server represents the main HTTP server.
type Server struct {
	server *http.Server
	router *gin.Engine
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates a new HTTP server. The router is assembled separately
// via SetupRouter so tests can exercise handlers in isolation.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterConfig holds the handlers and middleware used to assemble the router.
type RouterConfig struct {
	// Identity resolves the authenticated user from trusted proxy headers.
	// Applied to every /v1 route.
	Identity gin.HandlerFunc

	// AdminOnly rejects non-admin users. Applied to /v1/admin routes,
	// after Identity.
	AdminOnly gin.HandlerFunc

	// RateLimit is optional per-user rate limiting.
	RateLimit gin.HandlerFunc

	// CORS is optional, nil when disabled.
	CORS gin.HandlerFunc

	// HTTPMetrics records request counts and durations. Optional.
	HTTPMetrics gin.HandlerFunc

	User         *userHTTP.UserHandler
	Keys         *keysHTTP.KeyHandler
	Job          *jobHTTP.JobHandler
	Media        *mediaHTTP.MediaHandler
	Notification *notificationHTTP.NotificationHandler
}

// SetupRouter assembles the gin router with all routes and middleware.
func (s *Server) SetupRouter(cfg RouterConfig) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if cfg.CORS != nil {
		router.Use(cfg.CORS)
	}
	if cfg.HTTPMetrics != nil {
		router.Use(cfg.HTTPMetrics)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	v1.Use(cfg.Identity)
	if cfg.RateLimit != nil {
		v1.Use(cfg.RateLimit)
	}

	v1.GET("/me", cfg.User.MeHandler)

	encryption := v1.Group("/users/me/encryption")
	{
		encryption.GET("", cfg.Keys.StatusHandler)
		encryption.POST("", cfg.Keys.EnableHandler)
		encryption.POST("/validate", cfg.Keys.ValidateHandler)
		encryption.POST("/reset", cfg.Keys.ResetHandler)
	}

	jobs := v1.Group("/jobs")
	{
		jobs.POST("", cfg.Media.UploadHandler)
		jobs.GET("", cfg.Job.ListHandler)
		jobs.GET("/:id", cfg.Job.GetHandler)
		jobs.PUT("/:id", cfg.Job.UpdateHandler)
		jobs.DELETE("/:id", cfg.Job.DeleteHandler)
		jobs.PUT("/:id/result", cfg.Media.UploadResultHandler)
		jobs.GET("/:id/result", cfg.Media.ResultHandler)
		jobs.GET("/:id/stream", cfg.Media.StreamHandler)
		jobs.GET("/:id/download", cfg.Media.DownloadHandler)
	}

	notifications := v1.Group("/notifications")
	{
		notifications.GET("", cfg.Notification.ListHandler)
		notifications.PUT("/:id/read", cfg.Notification.MarkReadHandler)
	}

	admin := v1.Group("/admin")
	admin.Use(cfg.AdminOnly)
	{
		admin.GET("/stats", cfg.User.StatsHandler)
		admin.PUT("/users/:username", cfg.User.UpdateUserHandler)
	}

	s.router = router
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can serve traffic,
// including a database connectivity check.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
			ready = false
		} else {
			components["database"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured: call SetupRouter before Start")
	}

	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
