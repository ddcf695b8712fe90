// Package server assembles the VendorGuard HTTP router: middleware chain,
// health endpoints, Prometheus metrics and the /api/v1 handlers.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/jmerrifield20/vendorguard/internal/analysis"
	"github.com/jmerrifield20/vendorguard/internal/auth"
	"github.com/jmerrifield20/vendorguard/internal/config"
	"github.com/jmerrifield20/vendorguard/internal/health"
	"github.com/jmerrifield20/vendorguard/internal/server/handler"
)

// MaxBodyBytes bounds every request body.
const MaxBodyBytes = 1 << 20

// Options wires the router's dependencies.
type Options struct {
	Config  config.ServerConfig
	Service *analysis.Service
	Tokens  *auth.TokenIssuer // nil = open API
	Health  *health.Checker   // nil = /readyz always ready
	Logger  *zap.Logger
}

// New builds the HTTP handler. Background work started here (rate limiter
// cleanup) stops when ctx is cancelled.
func New(ctx context.Context, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// CORS
	origins := opts.Config.CORSOrigins
	if len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: !containsWildcard(origins),
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
		c.Next()
	})

	// Per-IP rate limiting
	if rps := opts.Config.RateLimitRPS; rps > 0 {
		router.Use(handler.RateLimiter(ctx, rps, rps*2))
	}

	router.Use(requestLogger(logger))
	router.Use(handler.PrometheusMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", readyz(opts.Health))
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	handler.NewAnalysisHandler(opts.Service, opts.Tokens, logger).Register(v1)
	if audit := opts.Service.Audit(); audit != nil {
		handler.NewAuditHandler(audit, opts.Tokens, logger).Register(v1)
	}

	return gzhttp.GzipHandler(router)
}

func readyz(checker *health.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
			return
		}
		r := checker.Report()
		code := http.StatusOK
		if !r.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, r)
	}
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
