package webhooks

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/anomaly"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
)

type ShippingService struct {
	Dedup     Dedup
	Orders    OrderStore
	Anomalies Anomalies
	Events    Events
	Log       *zap.Logger
}

// Handle applies one shipping provider delivery. Fulfillment never
// touches payment state or reservations.
func (s *ShippingService) Handle(ctx context.Context, ev ShippingEvent, raw []byte) (Outcome, error) {
	first, err := s.Dedup.MarkProcessed(ctx, ev.Provider, ev.EventID, raw)
	if err != nil {
		return OutcomeRetry, err
	}
	if !first {
		return OutcomeDuplicate, nil
	}

	o, err := s.Orders.Get(ctx, ev.OrderRef)
	if errors.Is(err, orders.ErrNotFound) {
		s.record(ctx, anomaly.KindUnknownOrder, ev.Provider, ev.OrderRef, "shipping event for unknown order", raw)
		return OutcomeUnknownOrder, nil
	}
	if err != nil {
		return retryLater(ctx, s.Dedup, s.Log, ev.Provider, ev.EventID, err)
	}

	if ev.TrackingNumber != "" || ev.CarrierCode != "" {
		if err := s.Orders.SetTracking(ctx, o.ID, ev.TrackingNumber, ev.CarrierCode); err != nil {
			return retryLater(ctx, s.Dedup, s.Log, ev.Provider, ev.EventID, err)
		}
	}

	next := MapProviderStatus(ev.Status)
	err = s.Orders.SetFulfillmentState(ctx, o.ID, next)
	if errors.Is(err, orders.ErrInvalidTransition) {
		s.record(ctx, anomaly.KindInvalidTransition, ev.Provider, o.ID, err.Error(), raw)
		return OutcomeAnomaly, nil
	}
	if err != nil {
		return retryLater(ctx, s.Dedup, s.Log, ev.Provider, ev.EventID, err)
	}
	s.Events.FulfillmentUpdated(o.ID, next, ev.TrackingNumber, ev.CarrierCode)
	return OutcomeApplied, nil
}

// MapProviderStatus folds free-form carrier status text onto the
// fulfillment states. Unknown text means the parcel is at least in the
// carrier's hands, so it maps to scheduled.
func MapProviderStatus(status string) orders.FulfillmentState {
	t := strings.ToLower(status)
	switch {
	case strings.Contains(t, "deliver"):
		return orders.FulfillmentDelivered
	case strings.Contains(t, "cancel"), strings.Contains(t, "return"):
		return orders.FulfillmentCancelled
	case strings.Contains(t, "transit"), strings.Contains(t, "ship"), strings.Contains(t, "on the way"):
		return orders.FulfillmentShipped
	default:
		return orders.FulfillmentScheduled
	}
}

func (s *ShippingService) record(ctx context.Context, kind, provider, orderRef, detail string, raw []byte) {
	if err := s.Anomalies.Record(ctx, kind, provider, orderRef, detail, raw); err != nil {
		s.Log.Error("anomaly record failed",
			zap.String("kind", kind), zap.String("order_ref", orderRef), zap.Error(err))
	}
	s.Log.Warn("shipping webhook anomaly",
		zap.String("kind", kind), zap.String("provider", provider),
		zap.String("order_ref", orderRef), zap.String("detail", detail))
}
