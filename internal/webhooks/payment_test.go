package webhooks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/anomaly"
	"github.com/sunucuics/ics-commerce-core/internal/memory"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/reservation"
	"github.com/sunucuics/ics-commerce-core/internal/stock"
	"github.com/sunucuics/ics-commerce-core/internal/webhooks"
)

type paymentFixture struct {
	ledger    *memory.Ledger
	calendar  *memory.Calendar
	store     *memory.OrderStore
	anomalies *memory.Anomalies
	events    *memory.EventSink
	svc       *webhooks.PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		ledger:    memory.NewLedger(),
		calendar:  memory.NewCalendar(),
		store:     memory.NewOrderStore(),
		anomalies: &memory.Anomalies{},
		events:    &memory.EventSink{},
	}
	f.svc = &webhooks.PaymentService{
		Dedup:  memory.NewDedup(),
		Orders: f.store,
		Reservations: &reservation.Coordinator{
			Stock:  f.ledger,
			Slots:  f.calendar,
			Orders: f.store,
			Log:    zap.NewNop(),
		},
		Anomalies: f.anomalies,
		Events:    f.events,
		Log:       zap.NewNop(),
	}
	return f
}

func (f *paymentFixture) seedHeldOrder(t *testing.T, orderID string, holdFor time.Duration) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &orders.Order{
		ID: orderID, ExternalID: "ext-" + orderID, UserID: "u1",
		PaymentState:     orders.PaymentPending,
		FulfillmentState: orders.FulfillmentUnscheduled,
		ReservationState: orders.ReservationHeld,
	}))
	f.ledger.SetStock("p1", f.ledger.Stock("p1")+1)
	require.NoError(t, f.ledger.Reserve(ctx, orderID, []stock.Line{{ProductID: "p1", Qty: 1}}, holdFor))
}

func TestPaymentSucceededCommitsAndPays(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedHeldOrder(t, "o1", time.Hour)
	ctx := context.Background()

	out, err := f.svc.Handle(ctx, webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-1", OrderRef: "o1", Outcome: "succeeded", ProviderRef: "pay-9",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeApplied, out)

	o, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, o.PaymentState)
	assert.Equal(t, orders.ReservationCommitted, o.ReservationState)

	st, _ := f.ledger.HoldStatus("o1")
	assert.Equal(t, stock.HoldCommitted, st)
	assert.Contains(t, f.events.Names(), "PaymentUpdated:o1:paid")
}

func TestPaymentDuplicateDeliveryAppliedOnce(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedHeldOrder(t, "o1", time.Hour)
	ctx := context.Background()
	ev := webhooks.PaymentEvent{Provider: "iyzico", EventID: "ev-1", OrderRef: "o1", Outcome: "succeeded"}

	out, err := f.svc.Handle(ctx, ev, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeApplied, out)

	out, err = f.svc.Handle(ctx, ev, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeDuplicate, out)

	// exactly one state change, one event
	count := 0
	for _, n := range f.events.Names() {
		if n == "PaymentUpdated:o1:paid" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPaymentFailedReleasesHold(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedHeldOrder(t, "o1", time.Hour)
	ctx := context.Background()

	out, err := f.svc.Handle(ctx, webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-1", OrderRef: "o1", Outcome: "failed",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeApplied, out)

	o, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentFailed, o.PaymentState)
	assert.Equal(t, orders.ReservationReleased, o.ReservationState)
	assert.Equal(t, 1, f.ledger.Stock("p1"), "held unit back in the ledger")
	assert.Contains(t, f.events.Names(), "ReservationReleased:o1:"+reservation.ReasonPaymentFailed)
}

func TestPaymentUnknownOrderRecordsAnomaly(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	out, err := f.svc.Handle(ctx, webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-1", OrderRef: "nope", Outcome: "succeeded",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeUnknownOrder, out)
	assert.Contains(t, f.anomalies.Kinds(), anomaly.KindUnknownOrder)
}

func TestPaymentSucceededAfterHoldExpired(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedHeldOrder(t, "o1", -time.Minute)
	ctx := context.Background()

	// sweeper won the race before the webhook landed
	coord := &reservation.Coordinator{Stock: f.ledger, Slots: f.calendar, Orders: f.store, Log: zap.NewNop()}
	_, err := coord.Sweep(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)

	out, err := f.svc.Handle(ctx, webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-1", OrderRef: "o1", Outcome: "succeeded",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeApplied, out)

	// the money is real even though the units are gone
	o, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, o.PaymentState)
	assert.Equal(t, orders.ReservationReleased, o.ReservationState)
	assert.Contains(t, f.anomalies.Kinds(), anomaly.KindInvalidTransition)
	assert.Equal(t, 1, f.ledger.Stock("p1"), "expired units stay released")
}

func TestPaymentInvalidTransitionAudited(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedHeldOrder(t, "o1", time.Hour)
	ctx := context.Background()

	_, err := f.svc.Handle(ctx, webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-1", OrderRef: "o1", Outcome: "succeeded",
	}, []byte(`{}`))
	require.NoError(t, err)

	// failed after paid is not a legal move
	out, err := f.svc.Handle(ctx, webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-2", OrderRef: "o1", Outcome: "failed",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeAnomaly, out)
	assert.Contains(t, f.anomalies.Kinds(), anomaly.KindInvalidTransition)

	o, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, o.PaymentState, "paid state survives the bad event")
}

func TestPaymentRefundAfterPaid(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedHeldOrder(t, "o1", time.Hour)
	ctx := context.Background()

	_, err := f.svc.Handle(ctx, webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-1", OrderRef: "o1", Outcome: "succeeded",
	}, []byte(`{}`))
	require.NoError(t, err)

	out, err := f.svc.Handle(ctx, webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-2", OrderRef: "o1", Outcome: "refunded",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeApplied, out)

	o, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentRefunded, o.PaymentState)
}

// flakyOrderStore fails a fixed number of reads before recovering,
// standing in for a transient database outage.
type flakyOrderStore struct {
	*memory.OrderStore
	failures int
}

func (s *flakyOrderStore) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("connection reset by peer")
	}
	return s.OrderStore.Get(ctx, orderID)
}

func TestPaymentRetryAfterStorageFailureStillApplies(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedHeldOrder(t, "o1", time.Hour)
	ctx := context.Background()

	flaky := &flakyOrderStore{OrderStore: f.store, failures: 1}
	svc := &webhooks.PaymentService{
		Dedup:  memory.NewDedup(),
		Orders: flaky,
		Reservations: &reservation.Coordinator{
			Stock:  f.ledger,
			Slots:  f.calendar,
			Orders: f.store,
			Log:    zap.NewNop(),
		},
		Anomalies: f.anomalies,
		Events:    f.events,
		Log:       zap.NewNop(),
	}
	ev := webhooks.PaymentEvent{Provider: "iyzico", EventID: "ev-1", OrderRef: "o1", Outcome: "succeeded"}

	out, err := svc.Handle(ctx, ev, []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, webhooks.OutcomeRetry, out)

	// the provider redelivers; the failed attempt must not have burned
	// the event id
	out, err = svc.Handle(ctx, ev, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeApplied, out)

	o, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, o.PaymentState)
	assert.Equal(t, orders.ReservationCommitted, o.ReservationState)
}

func TestOrderSnapshotSurvivesLifecycle(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Create(ctx, &orders.Order{
		ID: "o1", ExternalID: "ext-o1", UserID: "u1",
		Items: []orders.Item{
			{Kind: orders.ItemProduct, RefID: "p1", Title: "widget", Qty: 2, PriceCents: 1000},
			{Kind: orders.ItemProduct, RefID: "p2", Title: "gadget", Qty: 1, PriceCents: 250},
		},
		TotalCents:       2250,
		PaymentState:     orders.PaymentPending,
		FulfillmentState: orders.FulfillmentUnscheduled,
		ReservationState: orders.ReservationHeld,
	}))
	f.ledger.SetStock("p1", 2)
	f.ledger.SetStock("p2", 1)
	require.NoError(t, f.ledger.Reserve(ctx, "o1", []stock.Line{{ProductID: "p1", Qty: 2}, {ProductID: "p2", Qty: 1}}, time.Hour))

	before, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)

	// payment and fulfillment churn around the order
	out, err := f.svc.Handle(ctx, webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-1", OrderRef: "o1", Outcome: "succeeded",
	}, []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, webhooks.OutcomeApplied, out)
	require.NoError(t, f.store.SetTracking(ctx, "o1", "TRK-1", "aras"))
	require.NoError(t, f.store.SetFulfillmentState(ctx, "o1", orders.FulfillmentScheduled))
	require.NoError(t, f.store.SetFulfillmentState(ctx, "o1", orders.FulfillmentShipped))

	// states moved, snapshot did not
	after, err := f.store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, after.PaymentState)
	assert.Equal(t, orders.FulfillmentShipped, after.FulfillmentState)
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, before.TotalCents, after.TotalCents)
	assert.Equal(t, before.ExternalID, after.ExternalID)
	assert.Equal(t, before.UserID, after.UserID)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
}

func TestPaymentUnknownOutcomeIsAnomaly(t *testing.T) {
	f := newPaymentFixture(t)
	f.seedHeldOrder(t, "o1", time.Hour)

	out, err := f.svc.Handle(context.Background(), webhooks.PaymentEvent{
		Provider: "iyzico", EventID: "ev-1", OrderRef: "o1", Outcome: "exploded",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, webhooks.OutcomeAnomaly, out)
	assert.Contains(t, f.anomalies.Kinds(), anomaly.KindBadPayload)
}
