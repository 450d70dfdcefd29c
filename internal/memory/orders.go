package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sunucuics/ics-commerce-core/internal/orders"
)

// OrderStore applies the same guarded transitions as the postgres repo,
// including the no-op replay rule.
type OrderStore struct {
	mu         sync.Mutex
	byID       map[string]*orders.Order
	byExternal map[string]string
}

func NewOrderStore() *OrderStore {
	return &OrderStore{byID: map[string]*orders.Order{}, byExternal: map[string]string{}}
}

func externalKey(userID, externalID string) string {
	return userID + "\x00" + externalID
}

func (s *OrderStore) Create(ctx context.Context, o *orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byExternal[externalKey(o.UserID, o.ExternalID)]; dup {
		return orders.ErrAlreadyExists
	}
	cp := *o
	s.byID[o.ID] = &cp
	s.byExternal[externalKey(o.UserID, o.ExternalID)] = o.ID
	return nil
}

func (s *OrderStore) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *OrderStore) GetByExternalID(ctx context.Context, userID, externalID string) (*orders.Order, error) {
	s.mu.Lock()
	id, ok := s.byExternal[externalKey(userID, externalID)]
	s.mu.Unlock()
	if !ok {
		return nil, orders.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *OrderStore) SetPaymentState(ctx context.Context, orderID string, next orders.PaymentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.PaymentState == next {
		return nil
	}
	if !orders.CanPay(o.PaymentState, next) {
		return fmt.Errorf("%w: payment_state %s -> %s", orders.ErrInvalidTransition, o.PaymentState, next)
	}
	o.PaymentState = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *OrderStore) SetFulfillmentState(ctx context.Context, orderID string, next orders.FulfillmentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.FulfillmentState == next {
		return nil
	}
	if !orders.CanFulfill(o.FulfillmentState, next) {
		return fmt.Errorf("%w: fulfillment_state %s -> %s", orders.ErrInvalidTransition, o.FulfillmentState, next)
	}
	o.FulfillmentState = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *OrderStore) SetReservationState(ctx context.Context, orderID string, next orders.ReservationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.ReservationState == next {
		return nil
	}
	if !orders.CanReserve(o.ReservationState, next) {
		return fmt.Errorf("%w: reservation_state %s -> %s", orders.ErrInvalidTransition, o.ReservationState, next)
	}
	o.ReservationState = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *OrderStore) SetTracking(ctx context.Context, orderID, trackingNumber, carrierCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	if trackingNumber != "" {
		o.TrackingNumber = trackingNumber
	}
	if carrierCode != "" {
		o.CarrierCode = carrierCode
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}
