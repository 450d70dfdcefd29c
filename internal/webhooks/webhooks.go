// Package webhooks reconciles asynchronous payment and shipping
// provider notifications with order state. Delivery is at-least-once;
// an atomic insert-if-absent on the (provider, event id) dedup record
// makes the effect exactly-once. Bookkeeping problems on our side
// (unknown order, duplicate, invalid transition) are acknowledged and
// recorded, never surfaced to the provider: retry storms are worse
// than a delayed manual fix.
package webhooks

import (
	"context"

	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/orders"
)

// Outcome of handling one delivery, used for metrics and logging.
// Every value except OutcomeRetry is acknowledged to the provider.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeAnomaly      Outcome = "anomaly"
	OutcomeRetry        Outcome = "retry"
)

type PaymentEvent struct {
	Provider    string `json:"provider,omitempty"`
	EventID     string `json:"provider_event_id"`
	OrderRef    string `json:"order_reference"`
	Outcome     string `json:"outcome"` // succeeded | failed | refunded
	ProviderRef string `json:"payment_ref,omitempty"`
}

type ShippingEvent struct {
	Provider       string `json:"provider,omitempty"`
	EventID        string `json:"provider_event_id"`
	OrderRef       string `json:"order_reference"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	CarrierCode    string `json:"carrier_code,omitempty"`
}

// Dedup is the atomic insert-if-absent on the webhook event record.
// first is true only for the delivery that owns the side effects.
// Forget drops the record when those effects could not be applied, so
// the provider's retry is not mistaken for a duplicate.
type Dedup interface {
	MarkProcessed(ctx context.Context, provider, eventID string, payload []byte) (first bool, err error)
	Forget(ctx context.Context, provider, eventID string) error
}

type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	SetPaymentState(ctx context.Context, orderID string, next orders.PaymentState) error
	SetFulfillmentState(ctx context.Context, orderID string, next orders.FulfillmentState) error
	SetTracking(ctx context.Context, orderID, trackingNumber, carrierCode string) error
}

type Reservations interface {
	Commit(ctx context.Context, orderID string) error
	Release(ctx context.Context, orderID string) (bool, error)
}

type Anomalies interface {
	Record(ctx context.Context, kind, provider, orderRef, detail string, payload []byte) error
}

type Events interface {
	PaymentUpdated(orderID string, state orders.PaymentState, providerRef string)
	FulfillmentUpdated(orderID string, state orders.FulfillmentState, tracking, carrier string)
	ReservationReleased(orderID, reason string)
}

// retryLater hands a delivery back to the provider after a storage
// failure. The dedup record is dropped first so the retry is not acked
// as a duplicate of an event whose effects never landed.
func retryLater(ctx context.Context, d Dedup, log *zap.Logger, provider, eventID string, cause error) (Outcome, error) {
	if err := d.Forget(ctx, provider, eventID); err != nil {
		log.Error("dedup forget failed",
			zap.String("provider", provider), zap.String("event_id", eventID), zap.Error(err))
	}
	return OutcomeRetry, cause
}
