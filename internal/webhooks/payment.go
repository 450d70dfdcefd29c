package webhooks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/anomaly"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/reservation"
)

type PaymentService struct {
	Dedup        Dedup
	Orders       OrderStore
	Reservations Reservations
	Anomalies    Anomalies
	Events       Events
	Log          *zap.Logger
}

// Handle applies one payment provider delivery. Only OutcomeRetry (a
// storage failure) should be answered with a non-2xx status.
func (s *PaymentService) Handle(ctx context.Context, ev PaymentEvent, raw []byte) (Outcome, error) {
	first, err := s.Dedup.MarkProcessed(ctx, ev.Provider, ev.EventID, raw)
	if err != nil {
		return OutcomeRetry, err
	}
	if !first {
		return OutcomeDuplicate, nil
	}

	o, err := s.Orders.Get(ctx, ev.OrderRef)
	if errors.Is(err, orders.ErrNotFound) {
		s.record(ctx, anomaly.KindUnknownOrder, ev.Provider, ev.OrderRef, "payment event for unknown order", raw)
		return OutcomeUnknownOrder, nil
	}
	if err != nil {
		return retryLater(ctx, s.Dedup, s.Log, ev.Provider, ev.EventID, err)
	}

	switch ev.Outcome {
	case "succeeded":
		return s.applySucceeded(ctx, o, ev, raw)
	case "failed":
		return s.applyFailed(ctx, o, ev, raw)
	case "refunded":
		return s.applyTransition(ctx, o, ev, raw, orders.PaymentRefunded)
	default:
		s.record(ctx, anomaly.KindBadPayload, ev.Provider, ev.OrderRef,
			fmt.Sprintf("unknown payment outcome %q", ev.Outcome), raw)
		return OutcomeAnomaly, nil
	}
}

func (s *PaymentService) applySucceeded(ctx context.Context, o *orders.Order, ev PaymentEvent, raw []byte) (Outcome, error) {
	err := s.Reservations.Commit(ctx, o.ID)
	if errors.Is(err, reservation.ErrHoldExpired) {
		// Money arrived after the sweeper gave the units away. The
		// payment is still real; flag the order for a manual refund
		// or re-allocation instead of dropping the event.
		s.record(ctx, anomaly.KindInvalidTransition, ev.Provider, o.ID,
			"payment succeeded after hold expired", raw)
	} else if err != nil {
		return retryLater(ctx, s.Dedup, s.Log, ev.Provider, ev.EventID, err)
	}
	return s.applyTransition(ctx, o, ev, raw, orders.PaymentPaid)
}

func (s *PaymentService) applyFailed(ctx context.Context, o *orders.Order, ev PaymentEvent, raw []byte) (Outcome, error) {
	released, err := s.Reservations.Release(ctx, o.ID)
	if err != nil {
		return retryLater(ctx, s.Dedup, s.Log, ev.Provider, ev.EventID, err)
	}
	if released {
		s.Events.ReservationReleased(o.ID, reservation.ReasonPaymentFailed)
	}
	return s.applyTransition(ctx, o, ev, raw, orders.PaymentFailed)
}

func (s *PaymentService) applyTransition(ctx context.Context, o *orders.Order, ev PaymentEvent, raw []byte, next orders.PaymentState) (Outcome, error) {
	err := s.Orders.SetPaymentState(ctx, o.ID, next)
	if errors.Is(err, orders.ErrInvalidTransition) {
		s.record(ctx, anomaly.KindInvalidTransition, ev.Provider, o.ID, err.Error(), raw)
		return OutcomeAnomaly, nil
	}
	if err != nil {
		return retryLater(ctx, s.Dedup, s.Log, ev.Provider, ev.EventID, err)
	}
	s.Events.PaymentUpdated(o.ID, next, ev.ProviderRef)
	return OutcomeApplied, nil
}

func (s *PaymentService) record(ctx context.Context, kind, provider, orderRef, detail string, raw []byte) {
	if err := s.Anomalies.Record(ctx, kind, provider, orderRef, detail, raw); err != nil {
		s.Log.Error("anomaly record failed",
			zap.String("kind", kind), zap.String("order_ref", orderRef), zap.Error(err))
	}
	s.Log.Warn("payment webhook anomaly",
		zap.String("kind", kind), zap.String("provider", provider),
		zap.String("order_ref", orderRef), zap.String("detail", detail))
}
