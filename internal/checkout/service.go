package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-bakery/internal/cart"
	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/lock"
	"github.com/noah-isme/backend-bakery/internal/obs"
	"github.com/noah-isme/backend-bakery/internal/pricing"
	"github.com/noah-isme/backend-bakery/internal/submission"
)

// Submitter hands a confirmed cart to the order pipeline.
type Submitter interface {
	Submit(ctx context.Context, p submission.Payload) (string, error)
}

// Sessions resolves the cart store of a session. Snapshot reads the cart
// without keeping a store open.
type Sessions interface {
	Session(ctx context.Context, sessionID string) (*cart.Store, error)
	Snapshot(ctx context.Context, sessionID string) ([]cart.LineItem, error)
}

// Locker serializes checkout attempts per session.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Output reports an accepted submission.
type Output struct {
	SubmissionID string             `json:"submissionId"`
	TaskID       string             `json:"taskId"`
	Entries      []submission.Entry `json:"entries"`
	Pricing      pricing.Summary    `json:"pricing"`
}

// Service submits carts that pass the gate.
type Service struct {
	Sessions  Sessions
	Catalog   catalog.Lookup
	Submitter Submitter
	Locker    Locker
	LockTTL   time.Duration
	Discount  pricing.PairDiscount
	Logger    zerolog.Logger
	Now       func() time.Time
	NewID     func() string
}

// BuildSubmission lists the cart's line items in cart order. Simple items are
// not regrouped; each raw line item becomes one entry.
func BuildSubmission(items []cart.LineItem) []submission.Entry {
	out := make([]submission.Entry, 0, len(items))
	for _, it := range items {
		e := submission.Entry{ProductID: it.ProductID, Quantity: it.Quantity}
		if it.IsBox() {
			e.SelectedToppingIDs = slices.Clone(it.Toppings)
			e.Distribution = make(map[string]int, len(it.Distribution))
			for k, v := range it.Distribution {
				e.Distribution[k] = v
			}
		}
		out = append(out, e)
	}
	return out
}

// Preview evaluates the session's cart without submitting it.
func (s *Service) Preview(ctx context.Context, sessionID string) (Result, error) {
	if s == nil || s.Sessions == nil {
		return Result{}, errors.New("checkout service not configured")
	}
	items, err := s.Sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	return Evaluate(items, s.Catalog), nil
}

// Submit re-evaluates the cart under a per-session lock, enqueues it and
// settles the submitted line items out of the cart. Edits that land while the
// submission is in flight stay in the cart. A blocked cart is returned
// untouched with an integrity error naming every issue.
func (s *Service) Submit(ctx context.Context, sessionID string) (Output, error) {
	if s == nil || s.Submitter == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("bakery/checkout").Start(ctx, "checkout.submit")
	defer span.End()
	span.SetAttributes(attribute.String("bakery.session_id", sessionID))

	out, err := s.submit(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Output{}, err
	}
	span.SetAttributes(attribute.String("bakery.submission_id", out.SubmissionID))
	return out, nil
}

func (s *Service) submit(ctx context.Context, sessionID string) (Output, error) {
	store, err := s.session(ctx, sessionID)
	if err != nil {
		return Output{}, err
	}

	var out Output
	run := func(ctx context.Context) error {
		items := store.Items()
		if err := Evaluate(items, s.Catalog).Err(); err != nil {
			obs.ObserveCheckoutSubmission("blocked")
			return err
		}
		payload := submission.Payload{
			SubmissionID: s.newID(),
			SessionID:    sessionID,
			SubmittedAt:  s.now().UTC(),
			Entries:      BuildSubmission(items),
			Pricing:      pricing.Compute(cart.PricingItems(items), s.discount()),
		}
		taskID, err := s.Submitter.Submit(ctx, payload)
		if err != nil {
			obs.ObserveCheckoutSubmission("failed")
			return fmt.Errorf("submit cart: %w", err)
		}
		store.Settle(items)
		obs.ObserveCheckoutSubmission("submitted")
		s.Logger.Info().
			Str("session_id", sessionID).
			Str("submission_id", payload.SubmissionID).
			Int64("total", payload.Pricing.Total).
			Msg("checkout submitted")
		out = Output{
			SubmissionID: payload.SubmissionID,
			TaskID:       taskID,
			Entries:      payload.Entries,
			Pricing:      payload.Pricing,
		}
		return nil
	}

	if s.Locker == nil {
		err = run(ctx)
	} else {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 10 * time.Second
		}
		err = s.Locker.WithLock(ctx, lock.Key("checkout", sessionID), ttl, run)
	}
	if err != nil {
		return Output{}, err
	}
	return out, nil
}

func (s *Service) session(ctx context.Context, sessionID string) (*cart.Store, error) {
	if s == nil || s.Sessions == nil {
		return nil, errors.New("checkout service not configured")
	}
	return s.Sessions.Session(ctx, sessionID)
}

func (s *Service) discount() pricing.PairDiscount {
	if s.Discount.Category == "" {
		return pricing.LoafPairDiscount
	}
	return s.Discount
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
