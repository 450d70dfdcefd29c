// Package cart is the per-user working set of product lines. It is
// mutable, owner-scoped and never consulted as a stock source; checkout
// snapshots and clears it.
package cart

import "errors"

var (
	ErrItemNotFound = errors.New("cart: item not found")
	ErrInvalidQty   = errors.New("cart: quantity must be at least 1")
)

type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// ViewLine is a cart line joined with live catalog data. Unresolved
// lines (product removed from the catalog) are flagged instead of
// failing the whole cart.
type ViewLine struct {
	ProductID     string `json:"product_id"`
	Title         string `json:"title,omitempty"`
	Stock         int    `json:"stock,omitempty"`
	PriceCents    int64  `json:"price_cents,omitempty"`
	Qty           int    `json:"qty"`
	SubtotalCents int64  `json:"subtotal_cents"`
	Unresolved    bool   `json:"unresolved,omitempty"`
}

type View struct {
	UserID        string     `json:"user_id"`
	Items         []ViewLine `json:"items"`
	TotalQuantity int        `json:"total_quantity"`
	TotalCents    int64      `json:"total_cents"`
}
