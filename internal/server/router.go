package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/listkeeper/listkeeper/internal/config"
	"github.com/listkeeper/listkeeper/internal/handler"
	"github.com/listkeeper/listkeeper/internal/metrics"
	"github.com/listkeeper/listkeeper/internal/middleware"
	"github.com/listkeeper/listkeeper/internal/service"
)

// RouterConfig holds everything the HTTP surface depends on.
type RouterConfig struct {
	Logger   *slog.Logger
	Projects *config.Projects
	Entries  *service.EntryService
	Metrics  metrics.Snapshotter
	Health   []handler.Dependency

	// Admin API; mounted only when AdminTokenHash is set.
	AdminTokenHash   string
	TokenCache       middleware.TokenCache
	Limiter          middleware.IPLimiter
	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int

	// AuthMinDuration overrides the constant-time floor of admin auth.
	AuthMinDuration *time.Duration
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := handler.New(cfg.Projects)
	healthHandler := handler.NewHealthHandler(cfg.Health...)
	metricsHandler := handler.NewMetricsHandler(cfg.Metrics)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// Root info endpoint
	r.Get("/", h.Index)

	if cfg.AdminTokenHash != "" && cfg.Entries != nil {
		entriesHandler := handler.NewEntriesHandler(cfg.Entries, cfg.Projects, logger)

		r.Route("/api/v1", func(r chi.Router) {
			// Rate limiting runs before the Argon2id check.
			r.Use(middleware.RateLimitIP(middleware.RateLimitConfig{
				Logger:  logger,
				Limiter: cfg.Limiter,
				Enabled: cfg.RateLimitEnabled,
				RPS:     cfg.RateLimitRPS,
				Burst:   cfg.RateLimitBurst,
			}))
			r.Use(middleware.AdminAuth(middleware.AdminAuthConfig{
				Logger:      logger,
				TokenHash:   cfg.AdminTokenHash,
				Cache:       cfg.TokenCache,
				MinDuration: cfg.AuthMinDuration,
			}))

			r.Route("/projects/{project}", func(r chi.Router) {
				r.Get("/entries", entriesHandler.List)
				r.Get("/entries/count", entriesHandler.Count)
				r.Get("/users/{userID}", entriesHandler.GetUser)
			})
		})
	}

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
