package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sunucuics/ics-commerce-core/internal/stock"
)

type heldStock struct {
	lines     []stock.Line
	status    stock.HoldStatus
	expiresAt time.Time
}

// Ledger is the in-memory stock ledger. One mutex stands in for the
// per-product row locks; the observable semantics match.
type Ledger struct {
	mu    sync.Mutex
	stock map[string]int
	holds map[string]*heldStock
}

func NewLedger() *Ledger {
	return &Ledger{stock: map[string]int{}, holds: map[string]*heldStock{}}
}

func (l *Ledger) SetStock(productID string, qty int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[productID] = qty
}

func (l *Ledger) Stock(productID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[productID]
}

func (l *Ledger) Reserve(ctx context.Context, orderID string, lines []stock.Line, holdFor time.Duration) error {
	if len(lines) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var rejected []stock.RejectedLine
	for _, ln := range lines {
		available, ok := l.stock[ln.ProductID]
		if !ok {
			rejected = append(rejected, stock.RejectedLine{ProductID: ln.ProductID, Required: ln.Qty})
			continue
		}
		if available < ln.Qty {
			rejected = append(rejected, stock.RejectedLine{ProductID: ln.ProductID, Required: ln.Qty, Available: available})
		}
	}
	if len(rejected) > 0 {
		return &stock.InsufficientStockError{Lines: rejected}
	}

	for _, ln := range lines {
		l.stock[ln.ProductID] -= ln.Qty
	}
	cp := make([]stock.Line, len(lines))
	copy(cp, lines)
	l.holds[orderID] = &heldStock{
		lines:     cp,
		status:    stock.HoldHeld,
		expiresAt: time.Now().UTC().Add(holdFor),
	}
	return nil
}

func (l *Ledger) Commit(ctx context.Context, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.holds[orderID]; ok && h.status == stock.HoldHeld {
		h.status = stock.HoldCommitted
	}
	return nil
}

func (l *Ledger) Release(ctx context.Context, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holds[orderID]
	if !ok || h.status != stock.HoldHeld {
		return nil
	}
	for _, ln := range h.lines {
		l.stock[ln.ProductID] += ln.Qty
	}
	h.status = stock.HoldReleased
	return nil
}

func (l *Ledger) ExpiredOrders(ctx context.Context, now time.Time, limit int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for id, h := range l.holds {
		if h.status == stock.HoldHeld && h.expiresAt.Before(now) {
			out = append(out, id)
			if len(out) == limit {
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (l *Ledger) HoldStatus(orderID string) (stock.HoldStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holds[orderID]
	if !ok {
		return "", false
	}
	return h.status, true
}
