package submission

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bakery/internal/obs"
)

// OrderPlacer receives decoded submissions on the worker side.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, p Payload) error
}

// Handler processes order:submit tasks.
type Handler struct {
	Placer OrderPlacer
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler. Undecodable payloads are dropped
// without retry; placer failures are retried by asynq.
func (h Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := Decode(t.Payload())
	if err != nil {
		obs.ObserveSubmissionTask("malformed")
		h.Logger.Error().Err(err).Str("task_type", t.Type()).Msg("dropping submission")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if h.Placer == nil {
		obs.ObserveSubmissionTask("failed")
		return fmt.Errorf("submission handler: placer not configured")
	}
	if err := h.Placer.PlaceOrder(ctx, p); err != nil {
		obs.ObserveSubmissionTask("failed")
		h.Logger.Warn().Err(err).Str("submission_id", p.SubmissionID).Msg("place order failed")
		return err
	}
	obs.ObserveSubmissionTask("placed")
	return nil
}

// Register mounts the handler on an asynq mux.
func (h Handler) Register(mux *asynq.ServeMux) {
	mux.Handle(TaskTypeSubmit, h)
}

// LogPlacer logs each submission. It stands in until orders are persisted.
type LogPlacer struct {
	Logger zerolog.Logger
}

// PlaceOrder logs the submission summary.
func (l LogPlacer) PlaceOrder(_ context.Context, p Payload) error {
	units := 0
	for _, e := range p.Entries {
		units += e.Quantity
	}
	l.Logger.Info().
		Str("submission_id", p.SubmissionID).
		Str("session_id", p.SessionID).
		Int("entries", len(p.Entries)).
		Int("units", units).
		Int64("total", p.Pricing.Total).
		Time("submitted_at", p.SubmittedAt).
		Msg("order submitted")
	return nil
}
