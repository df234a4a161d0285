package api

import (
	"github.com/ayo6706/hold-ledger/internal/api/handler"
	"github.com/ayo6706/hold-ledger/internal/api/middleware"
	"github.com/ayo6706/hold-ledger/internal/api/spec"
	"github.com/ayo6706/hold-ledger/internal/config"
	"github.com/ayo6706/hold-ledger/internal/idempotency"
	"github.com/ayo6706/hold-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services bundles the service layer the HTTP surface wraps.
type Services struct {
	Holds    *service.HoldService
	Accounts *service.AccountService
	Credit   *service.CreditService
	// Ledger serves /health/ledger; nil disables it.
	Ledger handler.LedgerCheck
}

type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	store  handler.Pinger
	idem   *idempotency.Store
	redis  redis.Cmdable
	svc    Services
}

// NewRouter wires the handlers. redis may be nil when no cache is configured.
func NewRouter(cfg *config.Config, logger *zap.Logger, store handler.Pinger, idem *idempotency.Store, redis redis.Cmdable, svc Services) *Router {
	return &Router{cfg: cfg, logger: logger, store: store, idem: idem, redis: redis, svc: svc}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	exponent := api.cfg.CurrencyExponent
	healthHandler := handler.NewHealthHandler(api.store, api.redis, api.svc.Ledger)
	holdHandler := handler.NewHoldHandler(api.svc.Holds, exponent)
	userHandler := handler.NewUserHandler(api.svc.Accounts, api.svc.Credit, exponent)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Get("/health/ledger", healthHandler.Ledger)
	r.Handle("/metrics", promhttp.Handler())
	r.Get(spec.DocumentPath, spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(spec.DocumentPath)))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimiter(api.cfg.RateLimitRPS))
		idempotent := middleware.IdempotencyMiddleware(api.idem, api.logger)

		r.Route("/v1/holds/{id}", func(r chi.Router) {
			r.Get("/", holdHandler.Get)
			r.Put("/", holdHandler.Upsert)
			r.With(idempotent).Post("/capture", holdHandler.Capture)
			r.With(idempotent).Post("/release", holdHandler.Release)
		})

		r.Route("/v1/users/{id}", func(r chi.Router) {
			r.Put("/", userHandler.Ensure)
			r.Get("/balance", userHandler.Balance)
			r.Put("/credit-limit", userHandler.SetCreditLimit)
			r.Get("/lines", userHandler.Lines)
			r.With(idempotent).Post("/deposits", userHandler.Deposit)
			r.With(idempotent).Post("/withdrawals", userHandler.Withdraw)
		})
	})

	return r
}
