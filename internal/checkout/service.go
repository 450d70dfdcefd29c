package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/cart"
	"github.com/sunucuics/ics-commerce-core/internal/catalog"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/stock"
)

type Service struct {
	Pricer   Pricer
	Carts    Carts
	Stock    Ledger
	Slots    Calendar
	Releaser Releaser
	Orders   OrderStore
	Events   Events

	HoldWindow time.Duration
	Log        *zap.Logger
}

// Checkout runs the reserve-then-create flow. Reservation failures
// release everything acquired in this attempt before surfacing a single
// terminal error; the caller never observes partial success. A repeated
// external id returns the original order. External ids are scoped per
// user, so one client cannot read or block another's checkout.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if existing, err := s.Orders.GetByExternalID(ctx, req.UserID, req.ExternalID); err == nil {
		return &Result{Order: existing, Idempotent: true}, nil
	} else if !errors.Is(err, orders.ErrNotFound) {
		return nil, err
	}

	var lines []cart.Line
	if !req.SlotOnly {
		var err error
		lines, err = s.Carts.Lines(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
	}
	if len(lines) == 0 && req.Slot == nil {
		return nil, ErrEmptyCheckout
	}

	items, reserveLines, total, err := s.priceCart(ctx, lines)
	if err != nil {
		return nil, err
	}

	var svc catalog.Service
	if req.Slot != nil {
		svc, err = s.Pricer.GetService(ctx, req.Slot.ServiceID)
		if err != nil {
			return nil, err
		}
		total += svc.PriceCents
	}
	if total != req.ClientTotalCents {
		return nil, &PriceMismatchError{ClientCents: req.ClientTotalCents, ServerCents: total}
	}

	orderID := uuid.NewString()

	// Stock first, calendar second, always in that order; the ledger
	// itself locks products in sorted id order.
	if err := s.Stock.Reserve(ctx, orderID, reserveLines, s.HoldWindow); err != nil {
		return nil, err
	}
	if req.Slot != nil {
		start := req.Slot.Start
		end := req.Slot.End
		if end.IsZero() {
			end = start.Add(svc.SlotLength)
		}
		booking, err := s.Slots.Book(ctx, orderID, req.UserID, svc.ID, start, end, s.HoldWindow)
		if err != nil {
			s.rollback(ctx, orderID)
			return nil, err
		}
		items = append(items, orders.Item{
			Kind:       orders.ItemService,
			RefID:      svc.ID,
			Title:      svc.Title,
			Qty:        1,
			PriceCents: svc.PriceCents,
			SlotStart:  &booking.StartsAt,
			SlotEnd:    &booking.EndsAt,
		})
	}

	now := time.Now().UTC()
	o := &orders.Order{
		ID:               orderID,
		ExternalID:       req.ExternalID,
		UserID:           req.UserID,
		Items:            items,
		TotalCents:       total,
		PaymentState:     orders.PaymentPending,
		FulfillmentState: orders.FulfillmentUnscheduled,
		ReservationState: orders.ReservationHeld,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Orders.Create(ctx, o); err != nil {
		s.rollback(ctx, orderID)
		if errors.Is(err, orders.ErrAlreadyExists) {
			// lost a race on external_id; the winner's order stands
			existing, gerr := s.Orders.GetByExternalID(ctx, req.UserID, req.ExternalID)
			if gerr != nil {
				return nil, gerr
			}
			return &Result{Order: existing, Idempotent: true}, nil
		}
		return nil, err
	}

	if !req.SlotOnly {
		if err := s.Carts.Clear(ctx, req.UserID); err != nil {
			// Order and holds are in place; a stale cart is recoverable.
			s.Log.Warn("cart clear failed after checkout", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	s.Events.OrderCreated(o, req.TraceID)
	return &Result{Order: o}, nil
}

// priceCart recomputes every line from the catalog. Unknown products
// and non-positive quantities are terminal; the cart is not trusted.
func (s *Service) priceCart(ctx context.Context, lines []cart.Line) ([]orders.Item, []stock.Line, int64, error) {
	if len(lines) == 0 {
		return nil, nil, 0, nil
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.Pricer.ProductsByID(ctx, ids)
	if err != nil {
		return nil, nil, 0, err
	}

	var (
		items        []orders.Item
		reserveLines []stock.Line
		total        int64
	)
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, nil, 0, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, l.ProductID)
		}
		if l.Qty <= 0 {
			return nil, nil, 0, fmt.Errorf("invalid qty %d for product %s", l.Qty, l.ProductID)
		}
		items = append(items, orders.Item{
			Kind:       orders.ItemProduct,
			RefID:      p.ID,
			Title:      p.Title,
			Qty:        l.Qty,
			PriceCents: p.PriceCents,
		})
		reserveLines = append(reserveLines, stock.Line{ProductID: p.ID, Qty: l.Qty})
		total += p.PriceCents * int64(l.Qty)
	}
	return items, reserveLines, total, nil
}

func (s *Service) rollback(ctx context.Context, orderID string) {
	if _, err := s.Releaser.Release(ctx, orderID); err != nil {
		// The hold-window sweeper reclaims whatever this misses.
		s.Log.Error("checkout rollback failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
