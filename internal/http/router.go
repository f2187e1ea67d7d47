// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, webhook signatures, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Webhook routes behind HMAC signature verification
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/config"
	"github.com/bigbob/go-verify-backend/internal/http/handlers"
	"github.com/bigbob/go-verify-backend/internal/http/middleware"
	"github.com/bigbob/go-verify-backend/internal/queue"
	"github.com/bigbob/go-verify-backend/internal/roblox"
	"github.com/bigbob/go-verify-backend/internal/services"
	"github.com/bigbob/go-verify-backend/internal/session"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: the signed bot webhook under /bot, the self-service API under the
// configured base path, plus /health and /metrics.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secrets scrubbed
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per requester/IP)
//  8. CORS, gzip, and security headers
//
// The HMAC signature check is mounted on the /bot group only; self-service
// routes authenticate by X-User-ID instead.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, q queue.Queue, resolver roblox.Resolver, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (signature header is masked by
	// default; X-User-ID is an opaque numeric id and safe to log)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per requester/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByRequesterOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", handlers.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", handlers.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Compress responses (skip the Prometheus endpoint, scrapers negotiate
	// their own encoding)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← db/queue/resolver
	ingest := services.NewEventIngest(db, q)

	verifSvc := services.NewVerificationService(db, resolver)
	verifSvc.CodeTTL = cfg.CodeTTL

	purchSvc := services.NewPurchaseService(db, ingest)

	adminSvc := services.NewAdminService(db)
	adminSvc.TokenTTL = cfg.AdminTokenTTL

	referralSvc := services.NewReferralService(db)
	referralSvc.DailyRewardCap = cfg.ReferralDailyCap

	sessions := session.NewStore(cfg.SessionTTL)

	h := handlers.New(verifSvc, purchSvc, adminSvc, referralSvc, ingest, sessions, cfg.AdminInitialToken)

	// Signed bot webhook
	bot := r.Group("/bot", middleware.RequireSignature(cfg.HMACSecret))
	{
		bot.POST("/verification/check", h.CheckVerification)
		bot.POST("/verification/confirm", h.ConfirmVerification)
		bot.POST("/verification/status", h.VerificationStatus)
	}

	// Self-service API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	{
		api.POST("/verifications", h.IssueVerification)
		api.POST("/verifications/poll", h.PollVerification)
		api.GET("/verifications/latest", h.LatestVerification)
		api.GET("/session", h.DialogState)

		api.POST("/purchases", h.CreatePurchase)

		api.POST("/admin/tokens", h.CreateAdminToken)
		api.POST("/admin/tokens/approve", h.ApproveAdminToken)
		api.POST("/admin/login", h.AdminLogin)
		api.GET("/admin/logs", h.AdminLogs)
		api.POST("/admin/referrals/:id/reward", h.RewardReferral)
		api.POST("/admin/referrals/:id/flag", h.FlagReferral)
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; reads past the cap error downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
