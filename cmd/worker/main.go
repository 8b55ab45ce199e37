package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bakery/internal/app"
	"github.com/noah-isme/backend-bakery/internal/config"
	"github.com/noah-isme/backend-bakery/internal/obs"
	"github.com/noah-isme/backend-bakery/internal/submission"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	srv := newServer(cfg, deps.RedisConnOpt, logger)
	mux := newMux(submission.LogPlacer{Logger: logger}, logger)

	logger.Info().Str("queue", cfg.QueueName).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func newServer(cfg *config.Config, conn asynq.RedisConnOpt, logger zerolog.Logger) *asynq.Server {
	return asynq.NewServer(conn, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{cfg.QueueName: 1},
		ShutdownTimeout: 10 * time.Second,
		Logger:          asynqLogger{logger: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})
}

func newMux(placer submission.OrderPlacer, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	submission.Handler{Placer: placer, Logger: logger}.Register(mux)
	return mux
}
