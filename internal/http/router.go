// Package httpapi wires the HTTP transport (Gin) to the chat services,
// middleware and route handlers. It centralizes tracing, correlation IDs,
// redacting access logs, panic recovery, metrics, compression, CORS,
// security headers, authentication, idempotency and rate limiting.
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
	"gorm.io/gorm"

	"github.com/sickco/sickco-backend/internal/auth"
	"github.com/sickco/sickco-backend/internal/config"
	"github.com/sickco/sickco-backend/internal/http/handlers"
	"github.com/sickco/sickco-backend/internal/http/middleware"
	"github.com/sickco/sickco-backend/internal/repo"
	"github.com/sickco/sickco-backend/internal/services"
)

// Deps are the collaborators built by the entrypoint.
type Deps struct {
	DB        *gorm.DB
	Generator services.ReplyGenerator
	Verifier  auth.Verifier
	// Limiter defaults to a process-local token bucket when nil.
	Limiter middleware.Limiter
}

var allowedHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization",
	auth.UserHeader, middleware.HeaderIdempotencyKey, "If-None-Match",
}

var exposedHeaders = []string{
	"X-Request-ID", "Content-Length", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed,
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger (redacting)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Gzip
//  8. CORS and security headers
//
// The API group runs auth, then each route runs the per-user rate limiter.
// Submit validates its Idempotency-Key before the limiter, so only a replayed
// submission skips it.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.LogOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(64 << 10))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db, generator, gate
	gate := auth.ContextGate{}
	store := repo.NewTurnStore(deps.DB)

	chatSvc := services.NewChatService(gate, store, deps.Generator)
	if cfg.MaxMessageRunes > 0 {
		chatSvc.MaxMessageRunes = cfg.MaxMessageRunes
	}
	chatSvc.Idempotency = &repo.IdempotencyStore{DB: deps.DB, TTL: cfg.IdempotencyTTL}

	histSvc := services.NewHistoryService(gate, store)
	fbSvc := &services.FeedbackService{DB: deps.DB, Gate: gate}
	h := handlers.New(chatSvc, histSvc, fbSvc)

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	}

	limit := middleware.RateLimit(limiter, middleware.KeyByUserOrIP())
	idem := middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, completedTurnLookup(deps.DB))

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(auth.Middleware(deps.Verifier, handlers.Unauthorized))
	{
		api.POST("/chat", idem, limit, middleware.NoStore(), h.Submit)
		api.GET("/chat/history", limit, h.History)
		api.DELETE("/chat/history", limit, middleware.NoStore(), h.ClearHistory)
		api.POST("/chat/turns/:id/feedback", limit, middleware.NoStore(), h.LeaveFeedback)
	}
}

// completedTurnLookup reports a replay only when the key maps to a visible
// turn that already has a reply. Pending turns are processed again.
func completedTurnLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		turn, err := repo.GetTurn(ctx, db, rec.TurnID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return !turn.Pending(), nil
	}
}

// corsMiddleware allows every origin when none are configured, otherwise
// only the allowlist.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header, for simple probes.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowHeaders:     allowedHeaders,
				ExposeHeaders:    exposedHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     allowedHeaders,
			ExposeHeaders:    exposedHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody caps the request body at maxBytes.
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
