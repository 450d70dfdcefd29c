package orders

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/sunucuics/ics-commerce-core/internal/kafka"
)

// EventPublisher emits order lifecycle events on the Kafka stream.
// Publishing is async fire-and-forget; consumers dedup on event_id, so
// the occasional redelivery downstream is harmless.
type EventPublisher struct {
	Producer *kafkax.Producer
	Service  string
}

func (p *EventPublisher) OrderCreated(o *Order, traceID string) {
	p.emit(TopicOrderCreated, EventOrderCreated, o.ID, traceID, OrderCreatedPayload{
		OrderID:    o.ID,
		ExternalID: o.ExternalID,
		UserID:     o.UserID,
		Items:      o.Items,
		TotalCents: o.TotalCents,
	})
}

func (p *EventPublisher) PaymentUpdated(orderID string, state PaymentState, providerRef string) {
	p.emit(TopicPaymentUpdated, EventPaymentUpdated, orderID, "", PaymentUpdatedPayload{
		OrderID:      orderID,
		PaymentState: state,
		ProviderRef:  providerRef,
	})
}

func (p *EventPublisher) FulfillmentUpdated(orderID string, state FulfillmentState, tracking, carrier string) {
	p.emit(TopicFulfillmentUpdated, EventFulfillmentUpdated, orderID, "", FulfillmentUpdatedPayload{
		OrderID:          orderID,
		FulfillmentState: state,
		TrackingNumber:   tracking,
		CarrierCode:      carrier,
	})
}

func (p *EventPublisher) ReservationReleased(orderID, reason string) {
	p.emit(TopicReservationReleased, EventReservationReleased, orderID, "", ReservationReleasedPayload{
		OrderID: orderID,
		Reason:  reason,
	})
}

func (p *EventPublisher) emit(topic, eventType, orderID, traceID string, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Producer.Publish(topic, PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
