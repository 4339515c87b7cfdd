// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/procurehub/go-procurement-backend/internal/ai"
	"github.com/procurehub/go-procurement-backend/internal/config"
	"github.com/procurehub/go-procurement-backend/internal/fanout"
	"github.com/procurehub/go-procurement-backend/internal/http/handlers"
	"github.com/procurehub/go-procurement-backend/internal/http/middleware"
	"github.com/procurehub/go-procurement-backend/internal/ingest"
	"github.com/procurehub/go-procurement-backend/internal/mail"
	"github.com/procurehub/go-procurement-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, health and metrics endpoints, and then mounts the
// versioned public API under /api/v*.
//
// listener is nil when mailbox monitoring is not configured; the gmail push
// webhook then acknowledges without processing.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Structured logging
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP; webhook routes bypass)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, hub *fanout.Hub, oracle ai.Oracle, mailer mail.Mailer, listener *ingest.Listener, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured request logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP. Webhook senders retry
	// non-2xx responses, so their routes are exempt.
	r.Use(middleware.MarkRateBypass(cfg.APIBasePath + "/webhooks/"))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

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

	// Dependency injection: services ← repo/db/integrations
	vendorSvc := &services.VendorService{DB: db}
	proposalSvc := &services.ProposalService{DB: db, Oracle: oracle, Hub: hub}
	rfpSvc := &services.RFPService{DB: db, Oracle: oracle, Mailer: mailer, Proposals: proposalSvc}
	pipeline := ingest.NewPipeline(db, oracle, hub)

	var push handlers.PushIngestor
	if listener != nil {
		push = listener
	}
	h := handlers.New(vendorSvc, rfpSvc, proposalSvc, pipeline, push, hub)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Vendors
		api.POST("/vendors", h.CreateVendor)
		api.GET("/vendors", h.ListVendors)

		// RFPs
		api.POST("/rfps", h.CreateRFP)
		api.GET("/rfps/drafts", h.ListRFPDrafts)
		api.GET("/rfps/active", h.ListActiveRFPs)
		api.GET("/rfps/:id", h.GetRFP)
		api.PUT("/rfps/:id/draft", h.SaveRFPDraft)
		api.DELETE("/rfps/:id", h.DeleteRFP)
		api.POST("/rfps/:id/dispatch", h.DispatchRFP)
		api.GET("/rfps/:id/stats", h.GetRFPStats)
		api.PATCH("/rfps/:id/status", h.UpdateRFPStatus)

		// Proposals
		api.GET("/proposals", h.ListProposals)
		api.POST("/proposals/manual", h.SubmitManualProposal)
		api.POST("/proposals/:id/reevaluate", h.ReevaluateProposal)
		api.GET("/rfps/:id/proposals", h.ListRFPProposals)

		// Live event streams (SSE)
		api.GET("/rfps/:id/stream", h.StreamRFPEvents)
		api.GET("/proposals/stream", h.StreamProposalEvents)

		// Inbound webhooks
		hooks := api.Group("/webhooks")
		hooks.POST("/email", h.InboundEmail)
		hooks.POST("/gmail-push", h.GmailPush)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
