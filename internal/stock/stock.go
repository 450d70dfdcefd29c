// Package stock is the ledger of available units per product and the
// single source of truth for oversell prevention. A reservation holds
// units for one order; it is committed on payment confirmation or
// released (explicitly or by the hold-window sweeper).
package stock

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInsufficientStock = errors.New("stock: insufficient stock")

type HoldStatus string

const (
	HoldHeld      HoldStatus = "HELD"
	HoldCommitted HoldStatus = "COMMITTED"
	HoldReleased  HoldStatus = "RELEASED"
)

type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// RejectedLine reports why a single line could not be reserved.
type RejectedLine struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

// InsufficientStockError carries the per-line shortfall so callers can
// name the unavailable items. It unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	Lines []RejectedLine
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("%s need %d have %d", l.ProductID, l.Required, l.Available))
	}
	return "stock: insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
