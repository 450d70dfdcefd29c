package orders

import "errors"

// ErrInvalidTransition is returned for any lifecycle move not listed in
// the transition tables below. Callers must never swallow it silently;
// the repo records every rejected attempt for audit.
var ErrInvalidTransition = errors.New("orders: invalid state transition")

type PaymentState string

const (
	PaymentPending    PaymentState = "pending"
	PaymentAuthorized PaymentState = "authorized"
	PaymentPaid       PaymentState = "paid"
	PaymentFailed     PaymentState = "failed"
	PaymentRefunded   PaymentState = "refunded"
)

type FulfillmentState string

const (
	FulfillmentUnscheduled FulfillmentState = "unscheduled"
	FulfillmentScheduled   FulfillmentState = "scheduled"
	FulfillmentShipped     FulfillmentState = "shipped"
	FulfillmentDelivered   FulfillmentState = "delivered"
	FulfillmentCancelled   FulfillmentState = "cancelled"
)

type ReservationState string

const (
	ReservationHeld      ReservationState = "held"
	ReservationCommitted ReservationState = "committed"
	ReservationReleased  ReservationState = "released"
)

var paymentNext = map[PaymentState]map[PaymentState]bool{
	PaymentPending:    {PaymentAuthorized: true, PaymentPaid: true, PaymentFailed: true},
	PaymentAuthorized: {PaymentPaid: true, PaymentFailed: true},
	PaymentPaid:       {PaymentRefunded: true},
	PaymentFailed:     {},
	PaymentRefunded:   {},
}

// Fulfillment moves forward only; skipping a stage is allowed because
// providers do not always report every intermediate status. Cancelled
// is reachable from any non-terminal state.
var fulfillmentNext = map[FulfillmentState]map[FulfillmentState]bool{
	FulfillmentUnscheduled: {FulfillmentScheduled: true, FulfillmentShipped: true, FulfillmentDelivered: true, FulfillmentCancelled: true},
	FulfillmentScheduled:   {FulfillmentShipped: true, FulfillmentDelivered: true, FulfillmentCancelled: true},
	FulfillmentShipped:     {FulfillmentDelivered: true, FulfillmentCancelled: true},
	FulfillmentDelivered:   {},
	FulfillmentCancelled:   {},
}

var reservationNext = map[ReservationState]map[ReservationState]bool{
	ReservationHeld:      {ReservationCommitted: true, ReservationReleased: true},
	ReservationCommitted: {},
	ReservationReleased:  {},
}

func CanPay(from, to PaymentState) bool         { return paymentNext[from][to] }
func CanFulfill(from, to FulfillmentState) bool { return fulfillmentNext[from][to] }
func CanReserve(from, to ReservationState) bool { return reservationNext[from][to] }
