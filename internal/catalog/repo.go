package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, title, stock, price_cents, created_at, updated_at
	                              FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Title, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProductsByID returns the priced rows for the given ids. Missing ids
// are simply absent from the map; callers decide whether that is fatal.
func (r *Repo) ProductsByID(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}
	args := make([]any, 0, len(ids))
	params := ""
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx, `SELECT id, sku, title, stock, price_cents, created_at, updated_at
	                              FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Title, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *Repo) GetService(ctx context.Context, id string) (Service, error) {
	var s Service
	var slotMinutes int
	err := r.DB.QueryRow(ctx, `SELECT id, title, price_cents, capacity, slot_minutes, created_at
	                           FROM services WHERE id=$1`, id).
		Scan(&s.ID, &s.Title, &s.PriceCents, &s.Capacity, &slotMinutes, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Service{}, ErrServiceNotFound
	}
	if err != nil {
		return Service{}, err
	}
	s.SlotLength = time.Duration(slotMinutes) * time.Minute
	return s, nil
}

func (r *Repo) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, title, price_cents, capacity, slot_minutes, created_at
	                              FROM services ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		var slotMinutes int
		if err := rows.Scan(&s.ID, &s.Title, &s.PriceCents, &s.Capacity, &slotMinutes, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.SlotLength = time.Duration(slotMinutes) * time.Minute
		out = append(out, s)
	}
	return out, rows.Err()
}
