// Package httpapi wires the HTTP transport (Gin) to the handlers and
// middleware. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging/redaction, panic recovery, metrics, CORS,
// security headers, compression, sessions, idempotency and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/nemo-backend/internal/config"
	"github.com/tbourn/nemo-backend/internal/domain"
	"github.com/tbourn/nemo-backend/internal/http/handlers"
	"github.com/tbourn/nemo-backend/internal/http/middleware"
	"github.com/tbourn/nemo-backend/internal/services"
)

// Body limits. Chat and image turns carry base64 attachments.
const (
	defaultBodyLimit    int64 = 1 << 20
	attachmentBodyLimit int64 = 12 << 20
)

// assistantTurnCost is the rate-limit tokens spent by one model call.
const assistantTurnCost = 3

// Deps are the collaborators RegisterRoutes mounts.
type Deps struct {
	Handlers *handlers.Handlers

	// Sessions validates the session cookie.
	Sessions middleware.SessionParser

	// Idempotency looks up stored message appends; nil disables replay
	// detection (keys are still validated).
	Idempotency middleware.IdempotencyLookup

	// Ready reports whether the store is usable.
	Ready func() bool
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS, gzip and security headers
//
// Authenticated routes then run SessionAuth, RequireStore and the
// per-user rate limiter. On message appends the idempotency validator runs
// before the limiter so that replays bypass it.
func RegisterRoutes(r *gin.Engine, cfg config.Config, d Deps) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key", "X-Firebase-AppCheck"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limits
	base := cfg.APIBasePath
	r.Use(middleware.BodyLimit(defaultBodyLimit, map[string]int64{
		joinPath(base, "/chat"):   attachmentBodyLimit,
		joinPath(base, "/images"): attachmentBodyLimit,
	}))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS, compression, then security headers (Vary is appended after gzip sets it)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		EnablePolicy:  true,
		PrivatePrefix: base,
	}))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := d.Handlers
	storeReady := middleware.RequireStore(d.Ready)

	// OAuth redirect target lives outside the API prefix.
	r.GET("/auth/callback", storeReady, h.AuthCallback)

	api := groupWithPrefix(r, base)
	api.POST("/login/firebase", storeReady, h.Login)
	api.GET("/auth/url", h.AuthURL)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	session := api.Group("",
		middleware.SessionAuth(d.Sessions, cfg.Session.CookieName),
		storeReady,
	)
	authed := session.Group("", rl.Handler())
	turns := session.Group("", rl.HandlerN(assistantTurnCost))
	appends := session.Group("",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200, Param: "id"}, d.Idempotency),
		rl.Handler(),
	)

	// Session and profile
	authed.POST("/logout", h.Logout)
	authed.GET("/me", h.Me)
	authed.PATCH("/settings", h.UpdateSettings)
	authed.DELETE("/account", h.DeleteAccount)
	authed.POST("/notifications/token", h.RegisterToken)
	authed.POST("/notifications/test", h.TestNotification)
	authed.POST("/profile/analyze", h.AnalyzeProfile)
	authed.DELETE("/profile/memory/:index", h.DeleteMemoryEntry)

	// Conversations, also reachable as threads
	for _, prefix := range []string{"/conversations", "/threads"} {
		authed.GET(prefix, h.ListConversations)
		authed.POST(prefix, h.CreateConversation)
		authed.GET(prefix+"/:id", h.GetConversation)
		authed.PATCH(prefix+"/:id", h.UpdateConversation)
		authed.DELETE(prefix+"/:id", h.DeleteConversation)
		authed.GET(prefix+"/:id/messages", h.ListMessages)
		appends.POST(prefix+"/:id/messages", h.PostMessage)
		authed.PATCH(prefix+"/:id/messages/:messageId", h.UpdateMessage)
	}

	// Library
	authed.GET("/memories", h.ListMemories)
	authed.POST("/memories", h.CreateMemory)
	authed.DELETE("/memories/:id", h.DeleteMemory)
	authed.GET("/projects", h.ListProjects)
	authed.POST("/projects", h.CreateProject)

	// Assistant
	turns.POST("/chat", h.Chat)
	turns.POST("/images", h.GenerateImage)
	turns.POST("/speech", h.Speech)
	turns.POST("/voice", h.Voice)
}

// corsMiddleware allows credentials for the listed origins. With no list
// every origin is allowed, without credentials.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotency-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false // must remain false with AllowAllOrigins
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// IdempotencyLookup adapts a store to the idempotency middleware.
func IdempotencyLookup(store services.IdempotencyRepo) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, conversationID, key string, now time.Time) (bool, error) {
		_, err := store.GetIdempotency(ctx, userID, conversationID, key, now)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
