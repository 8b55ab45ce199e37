package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/backend-bakery/internal/app"
	"github.com/noah-isme/backend-bakery/internal/config"
	"github.com/noah-isme/backend-bakery/internal/health"
	"github.com/noah-isme/backend-bakery/internal/obs"
	"github.com/noah-isme/backend-bakery/internal/resilience"
	"github.com/noah-isme/backend-bakery/internal/submission"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   cfg.OTelServiceName,
		Endpoint:      cfg.OTelEndpoint,
		Exporter:      cfg.OTelExporter,
		SamplingRatio: cfg.OTelSamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	deps, err := app.New(ctx, cfg, logger, app.Options{WithTaskClient: true})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	sessions := newSessions(cfg, deps, logger)
	enqueuer := submission.Enqueuer{
		Client:    deps.TaskClient,
		Queue:     cfg.QueueName,
		MaxRetry:  cfg.QueueMaxRetry,
		Retention: cfg.IdempotencyTTL,
		Guard: &resilience.Policy{
			Breaker: resilience.NewBreaker("queue:"+cfg.QueueName, cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
				WithLogger(logger),
			MaxAttempts: cfg.EnqueueMaxAttempts,
			BaseBackoff: cfg.EnqueueBackoff,
			Jitter:      0.2,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, deps, sessions, enqueuer, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server exited unexpectedly")
		}
	}

	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	// Drains pending cart writes before Redis closes.
	sessions.Close()
	logger.Info().Msg("server shutdown complete")
}
