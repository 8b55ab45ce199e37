package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/config"
	"github.com/noah-isme/backend-bakery/internal/obs"
	"github.com/noah-isme/backend-bakery/internal/resilience"
	"github.com/noah-isme/backend-bakery/internal/storefront"
)

// Dependencies enumerates core services shared by the API and the worker.
type Dependencies struct {
	Redis           *redis.Client
	RedisConnOpt    asynq.RedisConnOpt
	Validator       *validator.Validate
	TaskClient      *asynq.Client
	Catalog         *catalog.Catalog
	MetricsRegistry *prometheus.Registry
	TracerProvider  trace.TracerProvider
}

// Options tweak how dependencies are built.
type Options struct {
	// WithTaskClient opens an asynq client for publishing submissions.
	WithTaskClient bool
	PingTimeout    time.Duration
}

// New connects Redis, instruments it and prepares the shared registries.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse queue redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, registry)
	if err := resilience.RegisterMetrics(registry); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("register breaker metrics: %w", err)
	}

	deps := &Dependencies{
		Redis:           client,
		RedisConnOpt:    connOpt,
		Validator:       storefront.NewValidator(),
		Catalog:         catalog.Default(),
		MetricsRegistry: registry,
		TracerProvider:  otel.GetTracerProvider(),
	}
	if opts.WithTaskClient {
		deps.TaskClient = asynq.NewClient(connOpt)
	}
	return deps, nil
}

// Close releases the queue client and the Redis connection pool.
func (d *Dependencies) Close() error {
	var errs []error
	if d.TaskClient != nil {
		if err := d.TaskClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close task client: %w", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Tracer returns a tracer from the configured provider.
func (d *Dependencies) Tracer(name string) trace.Tracer {
	if d.TracerProvider == nil {
		return otel.Tracer(name)
	}
	return d.TracerProvider.Tracer(name)
}
