// Package reservation joins the stock ledger, the slot calendar and the
// order's reservation state under one commit/release discipline. The
// order row is the gate: whichever of commit and release flips it out
// of held first wins, and the loser degrades to a no-op.
package reservation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/orders"
)

// ErrHoldExpired means the hold window lapsed and the sweeper released
// the units before the commit arrived.
var ErrHoldExpired = errors.New("reservation: hold window expired")

const (
	ReasonHoldExpired   = "HOLD_EXPIRED"
	ReasonPaymentFailed = "PAYMENT_FAILED"
	ReasonCheckoutAbort = "CHECKOUT_ABORT"
	ReasonAdminOverride = "ADMIN_OVERRIDE"
)

type Ledger interface {
	Commit(ctx context.Context, orderID string) error
	Release(ctx context.Context, orderID string) error
	ExpiredOrders(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type Calendar interface {
	Commit(ctx context.Context, orderID string) error
	ReleaseHeld(ctx context.Context, orderID string) error
	ExpiredOrders(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type OrderStates interface {
	SetReservationState(ctx context.Context, orderID string, next orders.ReservationState) error
}

type Coordinator struct {
	Stock  Ledger
	Slots  Calendar
	Orders OrderStates
	Log    *zap.Logger
}

// Commit finalizes an order's holds after payment confirmation. Fails
// with ErrHoldExpired when the reservation was already released.
func (c *Coordinator) Commit(ctx context.Context, orderID string) error {
	err := c.Orders.SetReservationState(ctx, orderID, orders.ReservationCommitted)
	if errors.Is(err, orders.ErrInvalidTransition) {
		return ErrHoldExpired
	}
	if err != nil {
		return err
	}
	if err := c.Stock.Commit(ctx, orderID); err != nil {
		return err
	}
	return c.Slots.Commit(ctx, orderID)
}

// Release returns an order's held units to availability. The bool is
// false only when the reservation was already committed; a repeated
// release reports true again but restores nothing, the underlying
// stores only act on HELD rows. Reservations with no order row (a
// checkout that died before creating one) are released as well.
func (c *Coordinator) Release(ctx context.Context, orderID string) (bool, error) {
	err := c.Orders.SetReservationState(ctx, orderID, orders.ReservationReleased)
	switch {
	case errors.Is(err, orders.ErrInvalidTransition):
		// Already committed. Finish flipping any hold rows a crashed
		// commit may have left behind, then stop.
		if err := c.Stock.Commit(ctx, orderID); err != nil {
			return false, err
		}
		return false, c.Slots.Commit(ctx, orderID)
	case errors.Is(err, orders.ErrNotFound):
		// orphan holds, fall through and release them
	case err != nil:
		return false, err
	}
	if err := c.Stock.Release(ctx, orderID); err != nil {
		return false, err
	}
	return true, c.Slots.ReleaseHeld(ctx, orderID)
}

// Sweep releases every hold that outlived the hold window and returns
// the affected order ids. An in-flight commit always wins: the order
// row gate inside Release rechecks state under lock.
func (c *Coordinator) Sweep(ctx context.Context, now time.Time, limit int) ([]string, error) {
	seen := map[string]bool{}
	var released []string

	for _, src := range []func(context.Context, time.Time, int) ([]string, error){
		c.Stock.ExpiredOrders, c.Slots.ExpiredOrders,
	} {
		ids, err := src(ctx, now, limit)
		if err != nil {
			return released, err
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			ok, err := c.Release(ctx, id)
			if err != nil {
				c.Log.Error("sweep release failed", zap.String("order_id", id), zap.Error(err))
				continue
			}
			if ok {
				released = append(released, id)
			}
		}
	}
	return released, nil
}
