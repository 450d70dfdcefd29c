package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/memory"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/reservation"
	"github.com/sunucuics/ics-commerce-core/internal/stock"
)

func newCoordinator(t *testing.T) (*reservation.Coordinator, *memory.Ledger, *memory.Calendar, *memory.OrderStore) {
	t.Helper()
	ledger := memory.NewLedger()
	calendar := memory.NewCalendar()
	store := memory.NewOrderStore()
	c := &reservation.Coordinator{
		Stock:  ledger,
		Slots:  calendar,
		Orders: store,
		Log:    zap.NewNop(),
	}
	return c, ledger, calendar, store
}

func heldOrder(t *testing.T, store *memory.OrderStore, id string) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &orders.Order{
		ID: id, ExternalID: "ext-" + id, UserID: "u1",
		PaymentState:     orders.PaymentPending,
		FulfillmentState: orders.FulfillmentUnscheduled,
		ReservationState: orders.ReservationHeld,
	}))
}

func TestCommitThenSweepKeepsUnits(t *testing.T) {
	c, ledger, _, store := newCoordinator(t)
	ctx := context.Background()

	ledger.SetStock("p1", 1)
	heldOrder(t, store, "o1")
	require.NoError(t, ledger.Reserve(ctx, "o1", []stock.Line{{ProductID: "p1", Qty: 1}}, -time.Minute))

	require.NoError(t, c.Commit(ctx, "o1"))

	// the hold is already past its window, but committed units are not swept
	released, err := c.Sweep(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Equal(t, 0, ledger.Stock("p1"))

	st, _ := ledger.HoldStatus("o1")
	assert.Equal(t, stock.HoldCommitted, st)
}

func TestSweepReleasesExpiredHold(t *testing.T) {
	c, ledger, _, store := newCoordinator(t)
	ctx := context.Background()

	ledger.SetStock("p1", 2)
	heldOrder(t, store, "o1")
	require.NoError(t, ledger.Reserve(ctx, "o1", []stock.Line{{ProductID: "p1", Qty: 2}}, -time.Minute))
	assert.Equal(t, 0, ledger.Stock("p1"))

	released, err := c.Sweep(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, released)
	assert.Equal(t, 2, ledger.Stock("p1"))

	o, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.ReservationReleased, o.ReservationState)
}

func TestCommitAfterReleaseFailsHoldExpired(t *testing.T) {
	c, ledger, _, store := newCoordinator(t)
	ctx := context.Background()

	ledger.SetStock("p1", 1)
	heldOrder(t, store, "o1")
	require.NoError(t, ledger.Reserve(ctx, "o1", []stock.Line{{ProductID: "p1", Qty: 1}}, -time.Minute))

	_, err := c.Sweep(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)

	err = c.Commit(ctx, "o1")
	require.ErrorIs(t, err, reservation.ErrHoldExpired)
	assert.Equal(t, 1, ledger.Stock("p1"), "released units stay released")
}

func TestReleaseAfterCommitIsNoOp(t *testing.T) {
	c, ledger, _, store := newCoordinator(t)
	ctx := context.Background()

	ledger.SetStock("p1", 1)
	heldOrder(t, store, "o1")
	require.NoError(t, ledger.Reserve(ctx, "o1", []stock.Line{{ProductID: "p1", Qty: 1}}, time.Hour))
	require.NoError(t, c.Commit(ctx, "o1"))

	released, err := c.Release(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, 0, ledger.Stock("p1"))
}

func TestReleaseIsIdempotent(t *testing.T) {
	c, ledger, _, store := newCoordinator(t)
	ctx := context.Background()

	ledger.SetStock("p1", 1)
	heldOrder(t, store, "o1")
	require.NoError(t, ledger.Reserve(ctx, "o1", []stock.Line{{ProductID: "p1", Qty: 1}}, time.Hour))

	released, err := c.Release(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, released)

	_, err = c.Release(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.Stock("p1"), "units restored exactly once")
}

func TestReleaseOrphanHoldWithoutOrderRow(t *testing.T) {
	c, ledger, _, _ := newCoordinator(t)
	ctx := context.Background()

	// a checkout that died after reserving but before creating the order
	ledger.SetStock("p1", 1)
	require.NoError(t, ledger.Reserve(ctx, "ghost", []stock.Line{{ProductID: "p1", Qty: 1}}, -time.Minute))

	released, err := c.Release(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 1, ledger.Stock("p1"))
}

func TestSweepCoversSlotOnlyOrders(t *testing.T) {
	c, _, calendar, store := newCoordinator(t)
	ctx := context.Background()

	calendar.SetCapacity("svc1", 1)
	heldOrder(t, store, "o1")
	start := time.Now().UTC().Add(24 * time.Hour)
	_, err := calendar.Book(ctx, "o1", "u1", "svc1", start, start.Add(time.Hour), -time.Minute)
	require.NoError(t, err)

	released, err := c.Sweep(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, released)

	// capacity is free again
	_, err = calendar.Book(ctx, "o2", "u2", "svc1", start, start.Add(time.Hour), time.Hour)
	require.NoError(t, err)
}
