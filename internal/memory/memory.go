// Package memory holds mutex-guarded in-memory implementations of the
// storage interfaces, used by tests and local experiments. Semantics
// mirror the postgres-backed implementations, including hold expiry and
// guarded state transitions.
package memory

import (
	"context"
	"sync"

	"github.com/sunucuics/ics-commerce-core/internal/cart"
	"github.com/sunucuics/ics-commerce-core/internal/catalog"
)

// Catalog serves products and services from maps.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
	services map[string]catalog.Service
}

func NewCatalog() *Catalog {
	return &Catalog{
		products: map[string]catalog.Product{},
		services: map[string]catalog.Service{},
	}
}

func (c *Catalog) PutProduct(p catalog.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *Catalog) PutService(s catalog.Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[s.ID] = s
}

func (c *Catalog) ProductsByID(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := map[string]catalog.Product{}
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *Catalog) GetService(ctx context.Context, id string) (catalog.Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.services[id]
	if !ok {
		return catalog.Service{}, catalog.ErrServiceNotFound
	}
	return s, nil
}

// CartStore keeps one line list per user.
type CartStore struct {
	mu    sync.Mutex
	lines map[string][]cart.Line
}

func NewCartStore() *CartStore {
	return &CartStore{lines: map[string][]cart.Line{}}
}

func (s *CartStore) AddItem(ctx context.Context, userID, productID string, qty int) error {
	if qty < 1 {
		return cart.ErrInvalidQty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.lines[userID] {
		if l.ProductID == productID {
			s.lines[userID][i].Qty += qty
			return nil
		}
	}
	s.lines[userID] = append(s.lines[userID], cart.Line{ProductID: productID, Qty: qty})
	return nil
}

func (s *CartStore) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cart.Line, len(s.lines[userID]))
	copy(out, s.lines[userID])
	return out, nil
}

func (s *CartStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, userID)
	return nil
}
