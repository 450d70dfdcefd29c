package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated        = "OrderCreated"
	EventPaymentUpdated      = "PaymentUpdated"
	EventFulfillmentUpdated  = "FulfillmentUpdated"
	EventReservationReleased = "ReservationReleased"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string `json:"order_id"`
	ExternalID string `json:"external_id"`
	UserID     string `json:"user_id"`
	Items      []Item `json:"items"`
	TotalCents int64  `json:"total_cents"`
}

type PaymentUpdatedPayload struct {
	OrderID      string       `json:"order_id"`
	PaymentState PaymentState `json:"payment_state"`
	ProviderRef  string       `json:"provider_ref,omitempty"`
}

type FulfillmentUpdatedPayload struct {
	OrderID          string           `json:"order_id"`
	FulfillmentState FulfillmentState `json:"fulfillment_state"`
	TrackingNumber   string           `json:"tracking_number,omitempty"`
	CarrierCode      string           `json:"carrier_code,omitempty"`
}

type ReservationReleasedPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"` // e.g. HOLD_EXPIRED, PAYMENT_FAILED
}
