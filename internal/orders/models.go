package orders

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("orders: not found")
	ErrAlreadyExists = errors.New("orders: order already exists")
)

// Order is immutable after creation: its items and total are a price
// snapshot taken at checkout. Corrections require a compensating order,
// never a mutation. Only the three lifecycle states, the tracking
// fields and updated_at ever change.
type Order struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	UserID     string `json:"user_id"`

	Items      []Item `json:"items"`
	TotalCents int64  `json:"total_cents"`

	PaymentState     PaymentState     `json:"payment_state"`
	FulfillmentState FulfillmentState `json:"fulfillment_state"`
	ReservationState ReservationState `json:"reservation_state"`

	TrackingNumber string `json:"tracking_number,omitempty"`
	CarrierCode    string `json:"carrier_code,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is one snapshot line. Kind distinguishes catalog products from
// booked services; a service line carries the booked window.
type Item struct {
	Kind       ItemKind   `json:"kind"`
	RefID      string     `json:"ref_id"` // product or service id
	Title      string     `json:"title"`
	Qty        int        `json:"qty"`
	PriceCents int64      `json:"price_cents"`
	SlotStart  *time.Time `json:"slot_start,omitempty"`
	SlotEnd    *time.Time `json:"slot_end,omitempty"`
}

type ItemKind string

const (
	ItemProduct ItemKind = "product"
	ItemService ItemKind = "service"
)
