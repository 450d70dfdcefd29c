package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// Create inserts the order and its snapshot items. A duplicate
// (user_id, external_id) fails with ErrAlreadyExists so checkout can
// fall back to the original order (idempotent create).
func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, user_id, total_cents,
		                   payment_state, fulfillment_state, reservation_state)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, o.ID, o.ExternalID, o.UserID, o.TotalCents, o.PaymentState, o.FulfillmentState, o.ReservationState)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, kind, ref_id, title, qty, price_cents, slot_start, slot_end)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, o.ID, it.Kind, it.RefID, it.Title, it.Qty, it.PriceCents, it.SlotStart, it.SlotEnd); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	return r.get(ctx, `WHERE id=$1`, orderID)
}

// GetByExternalID resolves an idempotency key within its owner's scope.
// Another user's identical external id is a different order.
func (r *Repo) GetByExternalID(ctx context.Context, userID, externalID string) (*Order, error) {
	return r.get(ctx, `WHERE user_id=$1 AND external_id=$2`, userID, externalID)
}

func (r *Repo) get(ctx context.Context, where string, args ...any) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, external_id, user_id, total_cents, payment_state, fulfillment_state,
		       reservation_state, COALESCE(tracking_number,''), COALESCE(carrier_code,''),
		       created_at, updated_at
		FROM orders `+where, args...).
		Scan(&o.ID, &o.ExternalID, &o.UserID, &o.TotalCents, &o.PaymentState, &o.FulfillmentState,
			&o.ReservationState, &o.TrackingNumber, &o.CarrierCode, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *Repo) itemsFor(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT kind, ref_id, title, qty, price_cents, slot_start, slot_end
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Kind, &it.RefID, &it.Title, &it.Qty, &it.PriceCents, &it.SlotStart, &it.SlotEnd); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListByUser returns the user's orders newest first, items included.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, external_id, user_id, total_cents, payment_state, fulfillment_state,
		       reservation_state, COALESCE(tracking_number,''), COALESCE(carrier_code,''),
		       created_at, updated_at
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.TotalCents, &o.PaymentState, &o.FulfillmentState,
			&o.ReservationState, &o.TrackingNumber, &o.CarrierCode, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range out {
		items, err := r.itemsFor(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		o.Items = items
	}
	return out, nil
}

// ListAll pages through every order newest first, for the admin
// surface. Items are not hydrated; fetch a single order for those.
func (r *Repo) ListAll(ctx context.Context, limit, offset int) ([]*Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, external_id, user_id, total_cents, payment_state, fulfillment_state,
		       reservation_state, COALESCE(tracking_number,''), COALESCE(carrier_code,''),
		       created_at, updated_at
		FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.TotalCents, &o.PaymentState, &o.FulfillmentState,
			&o.ReservationState, &o.TrackingNumber, &o.CarrierCode, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// SetPaymentState applies a payment transition under a row lock.
// Re-applying the current state is a no-op; anything not in the
// transition table is audited and rejected.
func (r *Repo) SetPaymentState(ctx context.Context, orderID string, next PaymentState) error {
	return r.transition(ctx, orderID, "payment_state", string(next), func(cur string) (bool, bool) {
		if PaymentState(cur) == next {
			return true, false
		}
		return CanPay(PaymentState(cur), next), true
	})
}

func (r *Repo) SetFulfillmentState(ctx context.Context, orderID string, next FulfillmentState) error {
	return r.transition(ctx, orderID, "fulfillment_state", string(next), func(cur string) (bool, bool) {
		if FulfillmentState(cur) == next {
			return true, false
		}
		return CanFulfill(FulfillmentState(cur), next), true
	})
}

func (r *Repo) SetReservationState(ctx context.Context, orderID string, next ReservationState) error {
	return r.transition(ctx, orderID, "reservation_state", string(next), func(cur string) (bool, bool) {
		if ReservationState(cur) == next {
			return true, false
		}
		return CanReserve(ReservationState(cur), next), true
	})
}

// transition runs one guarded state change. decide returns (allowed,
// mutate): a no-op replay is allowed without mutation. Rejected
// attempts are persisted to the audit trail before the error surfaces.
func (r *Repo) transition(ctx context.Context, orderID, field, next string, decide func(cur string) (bool, bool)) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var cur string
	err = tx.QueryRow(ctx, `SELECT `+field+` FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	allowed, mutate := decide(cur)
	if !allowed {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_state_audit(order_id, field, from_state, to_state, accepted)
			VALUES ($1,$2,$3,$4,false)`, orderID, field, cur, next); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, field, cur, next)
	}
	if !mutate {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET `+field+`=$2, updated_at=now() WHERE id=$1`, orderID, next); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_state_audit(order_id, field, from_state, to_state, accepted)
		VALUES ($1,$2,$3,$4,true)`, orderID, field, cur, next); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetTracking records carrier data from shipping webhooks or admins.
// Tracking fields are operational metadata, not part of the immutable
// snapshot.
func (r *Repo) SetTracking(ctx context.Context, orderID, trackingNumber, carrierCode string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET
			tracking_number = COALESCE(NULLIF($2,''), tracking_number),
			carrier_code    = COALESCE(NULLIF($3,''), carrier_code),
			updated_at      = now()
		WHERE id=$1`, orderID, trackingNumber, carrierCode)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
