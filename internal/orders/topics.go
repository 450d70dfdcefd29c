package orders

const (
	TopicOrderCreated        = "order.created"
	TopicPaymentUpdated      = "order.payment.updated"
	TopicFulfillmentUpdated  = "order.fulfillment.updated"
	TopicReservationReleased = "order.reservation.released"
)

// Partition key = order_id so all events for one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
