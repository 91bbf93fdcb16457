package app

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/SUNET/transcribe-backend/internal/http"
	"github.com/SUNET/transcribe-backend/internal/identity"
	"github.com/SUNET/transcribe-backend/internal/metrics"

	jobHTTP "github.com/SUNET/transcribe-backend/internal/job/http"
	keysHTTP "github.com/SUNET/transcribe-backend/internal/keys/http"
	mediaHTTP "github.com/SUNET/transcribe-backend/internal/media/http"
	notificationHTTP "github.com/SUNET/transcribe-backend/internal/notification/http"
	userHTTP "github.com/SUNET/transcribe-backend/internal/user/http"
)

// HTTPServer returns the HTTP server instance with the router assembled.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance.
// Returns nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// initHTTPServer creates the HTTP server with all its handlers and middleware.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	userUseCase, err := c.UserUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get user use case for http server: %w", err)
	}

	keyUseCase, err := c.KeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key use case for http server: %w", err)
	}

	jobUseCase, err := c.JobUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get job use case for http server: %w", err)
	}

	mediaUseCase, err := c.MediaUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get media use case for http server: %w", err)
	}

	notificationUseCase, err := c.NotificationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get notification use case for http server: %w", err)
	}

	var rateLimit gin.HandlerFunc
	if c.config.RateLimitEnabled {
		rateLimit = identity.RateLimitMiddleware(
			c.config.RateLimitRequestsPerSec, c.config.RateLimitBurst, logger,
		)
	}

	var httpMetrics gin.HandlerFunc
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}
	if provider != nil {
		httpMetrics = metrics.HTTPMetricsMiddleware(provider.MeterProvider(), c.config.MetricsNamespace)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(http.RouterConfig{
		Identity: identity.Middleware(userUseCase, identity.HeaderConfig{
			UserHeader:     c.config.AuthUserHeader,
			RealmHeader:    c.config.AuthRealmHeader,
			UsernameHeader: c.config.AuthUsernameHeader,
		}, logger),
		AdminOnly:   identity.AdminOnly(logger),
		RateLimit:   rateLimit,
		CORS:        http.CreateCORSMiddleware(c.config.CORSEnabled, c.config.CORSAllowOrigins, logger),
		HTTPMetrics: httpMetrics,

		User:         userHTTP.NewUserHandler(userUseCase, logger),
		Keys:         keysHTTP.NewKeyHandler(keyUseCase, logger),
		Job:          jobHTTP.NewJobHandler(jobUseCase, logger),
		Media:        mediaHTTP.NewMediaHandler(mediaUseCase, logger),
		Notification: notificationHTTP.NewNotificationHandler(notificationUseCase, logger),
	})

	return server, nil
}
