// Package checkout converts a cart and/or a slot request into an
// immutable order, reserving stock and calendar capacity as one logical
// unit with compensating release on any failure.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sunucuics/ics-commerce-core/internal/cart"
	"github.com/sunucuics/ics-commerce-core/internal/catalog"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/slots"
	"github.com/sunucuics/ics-commerce-core/internal/stock"
)

var (
	ErrPriceMismatch = errors.New("checkout: price mismatch")
	ErrEmptyCheckout = errors.New("checkout: nothing to check out")
)

// PriceMismatchError reports a stale client total against the
// server-side recomputation. Unwraps to ErrPriceMismatch.
type PriceMismatchError struct {
	ClientCents int64
	ServerCents int64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("checkout: price mismatch: client asserted %d, server computed %d", e.ClientCents, e.ServerCents)
}

func (e *PriceMismatchError) Unwrap() error { return ErrPriceMismatch }

type Pricer interface {
	ProductsByID(ctx context.Context, ids []string) (map[string]catalog.Product, error)
	GetService(ctx context.Context, id string) (catalog.Service, error)
}

type Carts interface {
	Lines(ctx context.Context, userID string) ([]cart.Line, error)
	Clear(ctx context.Context, userID string) error
}

type Ledger interface {
	Reserve(ctx context.Context, orderID string, lines []stock.Line, holdFor time.Duration) error
}

type Calendar interface {
	Book(ctx context.Context, orderID, userID, serviceID string, start, end time.Time, holdFor time.Duration) (slots.Booking, error)
}

// Releaser rolls back every hold acquired in a failed attempt.
type Releaser interface {
	Release(ctx context.Context, orderID string) (bool, error)
}

type OrderStore interface {
	Create(ctx context.Context, o *orders.Order) error
	GetByExternalID(ctx context.Context, userID, externalID string) (*orders.Order, error)
}

type Events interface {
	OrderCreated(o *orders.Order, traceID string)
}

type SlotRequest struct {
	ServiceID string    `json:"service_id"`
	Start     time.Time `json:"start"`
	// End is optional; zero means start + the service's slot length.
	End time.Time `json:"end,omitempty"`
}

type Request struct {
	ExternalID string
	UserID     string
	// ClientTotalCents is the total the client saw. Checkout rejects
	// the attempt when it disagrees with the server-side recomputation.
	ClientTotalCents int64
	Slot             *SlotRequest
	// SlotOnly books the slot without touching the user's cart, for
	// standalone appointment requests.
	SlotOnly bool
	TraceID  string
}

type Result struct {
	Order      *orders.Order
	Idempotent bool
}
