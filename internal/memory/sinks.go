package memory

import (
	"context"
	"sync"

	"github.com/sunucuics/ics-commerce-core/internal/anomaly"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
)

// Dedup is the in-memory insert-if-absent on (provider, event id).
type Dedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewDedup() *Dedup {
	return &Dedup{seen: map[string]bool{}}
}

func (d *Dedup) MarkProcessed(ctx context.Context, provider, eventID string, payload []byte) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := provider + "/" + eventID
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *Dedup) Forget(ctx context.Context, provider, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, provider+"/"+eventID)
	return nil
}

// Anomalies collects records for assertions.
type Anomalies struct {
	mu      sync.Mutex
	Records []anomaly.Record
}

func (a *Anomalies) Record(ctx context.Context, kind, provider, orderRef, detail string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Records = append(a.Records, anomaly.Record{
		Kind: kind, Provider: provider, OrderRef: orderRef, Detail: detail, Payload: payload,
	})
	return nil
}

func (a *Anomalies) Kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.Records))
	for _, r := range a.Records {
		out = append(out, r.Kind)
	}
	return out
}

// EventSink records published event names instead of hitting Kafka.
type EventSink struct {
	mu     sync.Mutex
	Events []string
}

func (e *EventSink) add(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Events = append(e.Events, name)
}

func (e *EventSink) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.Events))
	copy(out, e.Events)
	return out
}

func (e *EventSink) OrderCreated(o *orders.Order, traceID string) {
	e.add(orders.EventOrderCreated + ":" + o.ID)
}

func (e *EventSink) PaymentUpdated(orderID string, state orders.PaymentState, providerRef string) {
	e.add(orders.EventPaymentUpdated + ":" + orderID + ":" + string(state))
}

func (e *EventSink) FulfillmentUpdated(orderID string, state orders.FulfillmentState, tracking, carrier string) {
	e.add(orders.EventFulfillmentUpdated + ":" + orderID + ":" + string(state))
}

func (e *EventSink) ReservationReleased(orderID, reason string) {
	e.add(orders.EventReservationReleased + ":" + orderID + ":" + reason)
}
