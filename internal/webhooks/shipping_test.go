package webhooks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/anomaly"
	"github.com/sunucuics/ics-commerce-core/internal/memory"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/webhooks"
)

type shippingFixture struct {
	store     *memory.OrderStore
	anomalies *memory.Anomalies
	events    *memory.EventSink
	svc       *webhooks.ShippingService
}

func newShippingFixture(t *testing.T) *shippingFixture {
	t.Helper()
	f := &shippingFixture{
		store:     memory.NewOrderStore(),
		anomalies: &memory.Anomalies{},
		events:    &memory.EventSink{},
	}
	f.svc = &webhooks.ShippingService{
		Dedup:     memory.NewDedup(),
		Orders:    f.store,
		Anomalies: f.anomalies,
		Events:    f.events,
		Log:       zap.NewNop(),
	}
	require.NoError(t, f.store.Create(context.Background(), &orders.Order{
		ID: "o1", ExternalID: "ext-o1", UserID: "u1",
		PaymentState:     orders.PaymentPaid,
		FulfillmentState: orders.FulfillmentUnscheduled,
		ReservationState: orders.ReservationCommitted,
	}))
	return f
}

func TestShippingAppliesStatusAndTracking(t *testing.T) {
	f := newShippingFixture(t)
	ctx := context.Background()

	out, err := f.svc.Handle(ctx, webhooks.ShippingEvent{
		Provider: "aras", EventID: "sh-1", OrderRef: "o1",
		Status: "In Transit", TrackingNumber: "TRK123", CarrierCode: "aras",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeApplied, out)

	o, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.FulfillmentShipped, o.FulfillmentState)
	assert.Equal(t, "TRK123", o.TrackingNumber)
	assert.Equal(t, "aras", o.CarrierCode)
	assert.Contains(t, f.events.Names(), "FulfillmentUpdated:o1:shipped")
}

func TestShippingSkipsIntermediateStates(t *testing.T) {
	f := newShippingFixture(t)
	ctx := context.Background()

	// carrier reported nothing until the doorstep
	out, err := f.svc.Handle(ctx, webhooks.ShippingEvent{
		Provider: "aras", EventID: "sh-1", OrderRef: "o1", Status: "Delivered",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeApplied, out)

	o, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.FulfillmentDelivered, o.FulfillmentState)
}

func TestShippingBackwardsMoveIsAnomaly(t *testing.T) {
	f := newShippingFixture(t)
	ctx := context.Background()

	_, err := f.svc.Handle(ctx, webhooks.ShippingEvent{
		Provider: "aras", EventID: "sh-1", OrderRef: "o1", Status: "delivered",
	}, []byte(`{}`))
	require.NoError(t, err)

	out, err := f.svc.Handle(ctx, webhooks.ShippingEvent{
		Provider: "aras", EventID: "sh-2", OrderRef: "o1", Status: "shipped",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeAnomaly, out)
	assert.Contains(t, f.anomalies.Kinds(), anomaly.KindInvalidTransition)

	o, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.FulfillmentDelivered, o.FulfillmentState)
}

func TestShippingDuplicateDelivery(t *testing.T) {
	f := newShippingFixture(t)
	ctx := context.Background()
	ev := webhooks.ShippingEvent{Provider: "aras", EventID: "sh-1", OrderRef: "o1", Status: "shipped"}

	out, err := f.svc.Handle(ctx, ev, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeApplied, out)

	out, err = f.svc.Handle(ctx, ev, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeDuplicate, out)
}

func TestShippingUnknownOrder(t *testing.T) {
	f := newShippingFixture(t)

	out, err := f.svc.Handle(context.Background(), webhooks.ShippingEvent{
		Provider: "aras", EventID: "sh-1", OrderRef: "missing", Status: "shipped",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeUnknownOrder, out)
	assert.Contains(t, f.anomalies.Kinds(), anomaly.KindUnknownOrder)
}

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]orders.FulfillmentState{
		"Delivered":     orders.FulfillmentDelivered,
		"teslim edildi": orders.FulfillmentScheduled, // unknown text stays conservative
		"In Transit":    orders.FulfillmentShipped,
		"Shipped":       orders.FulfillmentShipped,
		"on the way":    orders.FulfillmentShipped,
		"Cancelled":     orders.FulfillmentCancelled,
		"Returned":      orders.FulfillmentCancelled,
		"label created": orders.FulfillmentScheduled,
		"":              orders.FulfillmentScheduled,
	}
	for in, want := range cases {
		assert.Equal(t, want, webhooks.MapProviderStatus(in), "status %q", in)
	}
}
