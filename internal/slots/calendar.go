package slots

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunucuics/ics-commerce-core/internal/postgres"
)

// Calendar serializes bookings per service by locking the service row,
// so overlapping requests resolve to at most capacity successes.
type Calendar struct{ DB *pgxpool.Pool }

func (c *Calendar) Book(ctx context.Context, orderID, userID, serviceID string, start, end time.Time, holdFor time.Duration) (Booking, error) {
	if !end.After(start) {
		return Booking{}, ErrInvalidWindow
	}
	var b Booking
	err := postgres.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		b, err = c.bookTx(ctx, orderID, userID, serviceID, start, end, holdFor)
		return err
	})
	return b, err
}

func (c *Calendar) bookTx(ctx context.Context, orderID, userID, serviceID string, start, end time.Time, holdFor time.Duration) (Booking, error) {
	tx, err := c.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Booking{}, err
	}
	defer tx.Rollback(ctx)

	var capacity int
	err = tx.QueryRow(ctx, `SELECT capacity FROM services WHERE id=$1 FOR UPDATE`, serviceID).Scan(&capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrServiceNotFound
	}
	if err != nil {
		return Booking{}, err
	}

	var occupancy int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM slot_bookings
		WHERE service_id=$1 AND status IN ('HELD','COMMITTED')
		  AND starts_at < $3 AND ends_at > $2`, serviceID, start.UTC(), end.UTC()).Scan(&occupancy)
	if err != nil {
		return Booking{}, err
	}
	if occupancy >= capacity {
		return Booking{}, ErrSlotUnavailable
	}

	b := Booking{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		ServiceID: serviceID,
		UserID:    userID,
		StartsAt:  start.UTC(),
		EndsAt:    end.UTC(),
		Status:    BookingHeld,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO slot_bookings(id, order_id, service_id, user_id, starts_at, ends_at, status, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,'HELD',$7)
	`, b.ID, b.OrderID, b.ServiceID, b.UserID, b.StartsAt, b.EndsAt, time.Now().UTC().Add(holdFor)); err != nil {
		return Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}
	return b, nil
}

// Commit pins the booking's occupancy. Idempotent.
func (c *Calendar) Commit(ctx context.Context, orderID string) error {
	_, err := c.DB.Exec(ctx, `
		UPDATE slot_bookings SET status='COMMITTED', expires_at=NULL
		WHERE order_id=$1 AND status='HELD'`, orderID)
	return err
}

// Cancel frees the occupancy unit whether the booking was held or
// committed. Idempotent: cancelling a released booking is a no-op.
func (c *Calendar) Cancel(ctx context.Context, orderID string) error {
	_, err := c.DB.Exec(ctx, `
		UPDATE slot_bookings SET status='RELEASED', expires_at=NULL
		WHERE order_id=$1 AND status IN ('HELD','COMMITTED')`, orderID)
	return err
}

// ReleaseHeld frees only uncommitted bookings; the sweeper uses this so
// it can never undo a committed booking.
func (c *Calendar) ReleaseHeld(ctx context.Context, orderID string) error {
	_, err := c.DB.Exec(ctx, `
		UPDATE slot_bookings SET status='RELEASED', expires_at=NULL
		WHERE order_id=$1 AND status='HELD'`, orderID)
	return err
}

func (c *Calendar) ExpiredOrders(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := c.DB.Query(ctx, `
		SELECT DISTINCT order_id FROM slot_bookings
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

// Busy lists occupied windows between from and to, for the public
// availability view.
func (c *Calendar) Busy(ctx context.Context, from, to time.Time) ([]BusyWindow, error) {
	rows, err := c.DB.Query(ctx, `
		SELECT service_id, starts_at, ends_at FROM slot_bookings
		WHERE status IN ('HELD','COMMITTED') AND starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BusyWindow
	for rows.Next() {
		var w BusyWindow
		if err := rows.Scan(&w.ServiceID, &w.StartsAt, &w.EndsAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListByUser returns the user's bookings, soonest first.
func (c *Calendar) ListByUser(ctx context.Context, userID string) ([]Booking, error) {
	rows, err := c.DB.Query(ctx, `
		SELECT id, order_id, service_id, user_id, starts_at, ends_at, status
		FROM slot_bookings WHERE user_id=$1 ORDER BY starts_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.OrderID, &b.ServiceID, &b.UserID, &b.StartsAt, &b.EndsAt, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
