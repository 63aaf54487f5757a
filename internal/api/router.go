// Package api exposes the HTTP surface: authentication, notifications,
// account settings, and service status, mounted under /api.
package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/auroralabs/aurora-backend/internal/config"
)

// RouterDeps bundles the handlers mounted by NewRouter.
type RouterDeps struct {
	Auth          *AuthHandler
	Notifications *NotificationHandler
	Settings      *SettingsHandler
	Status        *StatusHandler
	Middleware    *Middleware
}

// NewRouter builds the gin engine with the shared middleware chain and all
// API routes.
func NewRouter(cfg config.ServerConfig, deps RouterDeps, logger *zap.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	router.Use(PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/metrics", MetricsHandler())

	api := router.Group("/api")
	deps.Status.Register(api)
	deps.Auth.Register(api, deps.Middleware)
	deps.Notifications.Register(api, deps.Middleware)
	deps.Settings.Register(api, deps.Middleware)

	return router
}

// requestLogger logs each request with method, path, status, and latency.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.Contains(o, "*") {
			return true
		}
	}
	return false
}
