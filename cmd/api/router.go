package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bakery/internal/app"
	"github.com/noah-isme/backend-bakery/internal/cart"
	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/checkout"
	"github.com/noah-isme/backend-bakery/internal/common"
	"github.com/noah-isme/backend-bakery/internal/config"
	"github.com/noah-isme/backend-bakery/internal/health"
	"github.com/noah-isme/backend-bakery/internal/lock"
	"github.com/noah-isme/backend-bakery/internal/obs"
	"github.com/noah-isme/backend-bakery/internal/pricing"
	"github.com/noah-isme/backend-bakery/internal/ratelimit"
	"github.com/noah-isme/backend-bakery/internal/security"
	"github.com/noah-isme/backend-bakery/internal/storefront"
)

func discountRule(cfg *config.Config) pricing.PairDiscount {
	rule := pricing.LoafPairDiscount
	rule.PerPair = cfg.LoafPairDiscount
	return rule
}

func newSessions(cfg *config.Config, deps *app.Dependencies, logger zerolog.Logger) *cart.Manager {
	return cart.NewManager(cart.ManagerConfig{
		Catalog:      deps.Catalog,
		Storage:      cart.NewRedisStorage(deps.Redis, cfg.CartTTL),
		KeyPrefix:    cfg.CartKeyPrefix,
		Discount:     discountRule(cfg),
		WriteTimeout: cfg.CartWriteTimeout,
		IdleTTL:      cfg.CartIdleTTL,
		Logger:       logger.With().Str("component", "cart").Logger(),
	})
}

func newRouter(cfg *config.Config, deps *app.Dependencies, sessions *cart.Manager, submitter checkout.Submitter, logger zerolog.Logger) http.Handler {
	checkoutSvc := &checkout.Service{
		Sessions:  sessions,
		Catalog:   deps.Catalog,
		Submitter: submitter,
		Locker: lock.Locker{
			R:            deps.Redis,
			RetryBackoff: cfg.LockRetryBackoff,
			MaxWait:      cfg.LockMaxWait,
		},
		LockTTL:  cfg.CheckoutLockTTL,
		Discount: discountRule(cfg),
		Logger:   logger.With().Str("component", "checkout").Logger(),
	}
	storefrontHandler := storefront.NewHandler(storefront.HandlerConfig{
		Catalog:  deps.Catalog,
		Sessions: sessions,
		Checkout: checkoutSvc,
		Validate: deps.Validator,
		Discount: discountRule(cfg),
		Currency: cfg.CurrencyCode,
		Logger:   logger.With().Str("component", "storefront").Logger(),
	})
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Catalog: deps.Catalog})

	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "ratelimit:cart:"},
		Config: ratelimit.Config{
			Key:    ratelimit.SessionKey,
			Window: cfg.RateLimitCartWindow,
			Max:    cfg.RateLimitCartMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), deps.MetricsRegistry)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeadersEnabled,
		EnableHSTS:            cfg.IsProduction(),
		HSTSIncludeSubdomains: true,
		NoStore:               true,
	}.Middleware)

	r.Handle("/metrics", obs.Handler(deps.MetricsRegistry))

	healthHandler := health.Handler{Checker: health.RedisChecker{Client: deps.Redis}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.Get("/catalog/products", catalogHandler.Products)
		v.Get("/catalog/toppings", catalogHandler.Toppings)

		var mutate storefront.Mutating
		if cfg.RateLimitCartMax > 0 {
			mutate = limiter.Middleware
		}
		storefrontHandler.Routes(v, mutate, idem.Middleware)
	})
	return r
}
