package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/mpay/internal/adapter/http/handler"
	"github.com/iho/mpay/internal/adapter/http/middleware"
	"github.com/iho/mpay/internal/infrastructure/metrics"
	"github.com/iho/mpay/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	UserHandler    *handler.UserHandler
	PaymentHandler *handler.PaymentHandler
	BalanceHandler *handler.BalanceHandler
	OrderHandler   *handler.OrderHandler
	LedgerHandler  *handler.LedgerHandler
	TagHandler     *handler.TagHandler
	HealthHandler  *handler.HealthHandler

	// Optional.
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)

	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", cfg.UserHandler.Create)
			r.Get("/", cfg.UserHandler.List)
			r.Get("/{name}", cfg.UserHandler.Get)
			r.Post("/{name}/deactivate", cfg.UserHandler.Deactivate)
			r.Get("/{name}/balance", cfg.UserHandler.Balance)
			r.Get("/{name}/transactions", cfg.UserHandler.History)
		})

		r.Route("/payments", func(r chi.Router) {
			// Payments are the only non-idempotent writes.
			if cfg.IdempotencyStore != nil {
				r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
			}

			r.Post("/", cfg.PaymentHandler.Create)
			r.Post("/import", cfg.PaymentHandler.Import)
			r.Get("/{id}", cfg.PaymentHandler.Get)
		})

		r.Get("/balances", cfg.BalanceHandler.List)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", cfg.OrderHandler.Create)
			r.Get("/", cfg.OrderHandler.List)
			r.Post("/run", cfg.OrderHandler.Run)
			r.Get("/{name}", cfg.OrderHandler.Get)
			r.Post("/{name}/disable", cfg.OrderHandler.Disable)
			r.Delete("/{name}", cfg.OrderHandler.Delete)
		})

		r.Get("/ledger/check", cfg.LedgerHandler.Check)

		r.Route("/tags", func(r chi.Router) {
			r.Post("/", cfg.TagHandler.CreateTag)
			r.Get("/", cfg.TagHandler.ListTags)
			r.Get("/tree", cfg.TagHandler.TagTree)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", cfg.TagHandler.CreateAgent)
			r.Get("/", cfg.TagHandler.ListAgents)
		})
	})

	return r
}
