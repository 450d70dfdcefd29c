package stock

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunucuics/ics-commerce-core/internal/postgres"
)

// Ledger serializes stock mutations per product with row locks so two
// concurrent holds on the last unit cannot both succeed.
type Ledger struct{ DB *pgxpool.Pool }

// Reserve decrements stock and records a HELD row per line, all in one
// transaction. Locks are taken in sorted product order so overlapping
// multi-item checkouts cannot deadlock each other. On any shortfall
// nothing is committed and the full rejection detail is returned.
func (l *Ledger) Reserve(ctx context.Context, orderID string, lines []Line, holdFor time.Duration) error {
	if len(lines) == 0 {
		return nil
	}
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	return postgres.WithRetry(ctx, func(ctx context.Context) error {
		return l.reserveTx(ctx, orderID, sorted, holdFor)
	})
}

func (l *Ledger) reserveTx(ctx context.Context, orderID string, lines []Line, holdFor time.Duration) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	expiresAt := time.Now().UTC().Add(holdFor)
	var rejected []RejectedLine

	for _, ln := range lines {
		var available int
		err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, ln.ProductID).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			rejected = append(rejected, RejectedLine{ProductID: ln.ProductID, Required: ln.Qty})
			continue
		}
		if err != nil {
			return err
		}
		if available < ln.Qty {
			rejected = append(rejected, RejectedLine{ProductID: ln.ProductID, Required: ln.Qty, Available: available})
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`,
			ln.ProductID, ln.Qty); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_reservations(order_id, product_id, qty, status, expires_at)
			VALUES ($1,$2,$3,'HELD',$4)
			ON CONFLICT (order_id, product_id) DO NOTHING
		`, orderID, ln.ProductID, ln.Qty, expiresAt); err != nil {
			return err
		}
	}

	if len(rejected) > 0 {
		return &InsufficientStockError{Lines: rejected} // rollback via defer
	}
	return tx.Commit(ctx)
}

// Commit finalizes a hold. Units were already decremented at reserve
// time, so this only flips status. Idempotent: committing an already
// committed or released order is a no-op.
func (l *Ledger) Commit(ctx context.Context, orderID string) error {
	_, err := l.DB.Exec(ctx, `
		UPDATE stock_reservations SET status='COMMITTED', expires_at=NULL
		WHERE order_id=$1 AND status='HELD'`, orderID)
	return err
}

// Release returns HELD units to availability. Idempotent: rows already
// committed or released are untouched.
func (l *Ledger) Release(ctx context.Context, orderID string) error {
	return postgres.WithRetry(ctx, func(ctx context.Context) error {
		return l.releaseTx(ctx, orderID)
	})
}

func (l *Ledger) releaseTx(ctx context.Context, orderID string) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT product_id, qty FROM stock_reservations
		WHERE order_id=$1 AND status='HELD' FOR UPDATE`, orderID)
	if err != nil {
		return err
	}
	var lines []Line
	for rows.Next() {
		var ln Line
		if err := rows.Scan(&ln.ProductID, &ln.Qty); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, ln)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(lines) == 0 {
		return tx.Commit(ctx)
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	for _, ln := range lines {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
			ln.ProductID, ln.Qty); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE stock_reservations SET status='RELEASED', expires_at=NULL
		WHERE order_id=$1 AND status='HELD'`, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ExpiredOrders lists orders whose holds outlived the hold window.
// Release rechecks status under lock, so a commit that lands between
// this read and the release still wins.
func (l *Ledger) ExpiredOrders(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT DISTINCT order_id FROM stock_reservations
		WHERE status='HELD' AND expires_at < $1 LIMIT $2`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
