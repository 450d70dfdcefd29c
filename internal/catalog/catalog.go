// Package catalog is the read side for products and bookable services.
// Checkout recomputes every total from these rows; client-asserted
// prices are never trusted.
package catalog

import (
	"errors"
	"time"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrServiceNotFound = errors.New("catalog: service not found")
)

type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Title      string    `json:"title"`
	Stock      int       `json:"stock"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Service is a bookable offering (appointment-based). Capacity is the
// number of concurrent bookings a single time window may hold.
type Service struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	PriceCents int64         `json:"price_cents"`
	Capacity   int           `json:"capacity"`
	SlotLength time.Duration `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
}
