package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	limitermem "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/SscSPs/invoice_processing_app/internal/core/services"
	"github.com/SscSPs/invoice_processing_app/internal/middleware"
	"github.com/SscSPs/invoice_processing_app/internal/platform/config"
)

// RegisterRoutes sets up all application routes.
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	container *services.ServiceContainer,
) {
	r.GET("/", getHome)
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(container.Metrics.Registry(), promhttp.HandlerOpts{})))

	setupAPIV1Routes(r, cfg, container)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific
// entity route registrations.
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	container *services.ServiceContainer,
) {
	// Apply AuthMiddleware to the entire v1 group
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret))

	registerInvoiceRoutes(v1, container.Invoices)
	registerProcessingRoutes(v1, container.Orchestrator, container.Broadcaster, cfg.SyncWaitTimeout, submitRateLimiter(cfg))
	registerEventRoutes(v1, container.Broadcaster)
	registerRuleRoutes(v1, container.Rules)
}

// submitRateLimiter builds the in-memory limiter guarding the upload
// endpoints. An unparsable rate disables limiting rather than blocking
// startup.
func submitRateLimiter(cfg *config.Config) gin.HandlerFunc {
	if cfg.SubmitRateLimit == "" {
		return nil
	}
	rate, err := limiter.NewRateFromFormatted(cfg.SubmitRateLimit)
	if err != nil {
		slog.Warn("Invalid SUBMIT_RATE_LIMIT, rate limiting disabled", slog.String("value", cfg.SubmitRateLimit))
		return nil
	}
	return middleware.RateLimit(limiter.New(limitermem.NewStore(), rate))
}
