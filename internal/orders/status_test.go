package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentTransitions(t *testing.T) {
	assert.True(t, CanPay(PaymentPending, PaymentAuthorized))
	assert.True(t, CanPay(PaymentPending, PaymentPaid))
	assert.True(t, CanPay(PaymentPending, PaymentFailed))
	assert.True(t, CanPay(PaymentAuthorized, PaymentPaid))
	assert.True(t, CanPay(PaymentAuthorized, PaymentFailed))
	assert.True(t, CanPay(PaymentPaid, PaymentRefunded))

	assert.False(t, CanPay(PaymentPaid, PaymentFailed))
	assert.False(t, CanPay(PaymentFailed, PaymentPaid))
	assert.False(t, CanPay(PaymentRefunded, PaymentPending))
	assert.False(t, CanPay(PaymentPending, PaymentRefunded))
}

func TestFulfillmentTransitionsForwardOnly(t *testing.T) {
	assert.True(t, CanFulfill(FulfillmentUnscheduled, FulfillmentScheduled))
	assert.True(t, CanFulfill(FulfillmentUnscheduled, FulfillmentDelivered), "providers may skip stages")
	assert.True(t, CanFulfill(FulfillmentScheduled, FulfillmentShipped))
	assert.True(t, CanFulfill(FulfillmentShipped, FulfillmentDelivered))

	assert.False(t, CanFulfill(FulfillmentDelivered, FulfillmentShipped))
	assert.False(t, CanFulfill(FulfillmentShipped, FulfillmentScheduled))
	assert.False(t, CanFulfill(FulfillmentDelivered, FulfillmentCancelled), "delivered is terminal")
	assert.False(t, CanFulfill(FulfillmentCancelled, FulfillmentScheduled))
}

func TestFulfillmentCancellableWhileNonTerminal(t *testing.T) {
	for _, from := range []FulfillmentState{FulfillmentUnscheduled, FulfillmentScheduled, FulfillmentShipped} {
		assert.True(t, CanFulfill(from, FulfillmentCancelled), "from %s", from)
	}
}

func TestReservationTransitions(t *testing.T) {
	assert.True(t, CanReserve(ReservationHeld, ReservationCommitted))
	assert.True(t, CanReserve(ReservationHeld, ReservationReleased))

	assert.False(t, CanReserve(ReservationCommitted, ReservationReleased))
	assert.False(t, CanReserve(ReservationReleased, ReservationCommitted))
	assert.False(t, CanReserve(ReservationCommitted, ReservationHeld))
}
