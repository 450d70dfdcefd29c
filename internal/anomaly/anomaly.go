// Package anomaly records bookkeeping problems that are acknowledged to
// the outside world but still need operator review: webhooks for
// unknown orders, unparseable payloads, rejected state transitions.
package anomaly

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	KindUnknownOrder      = "unknown_order"
	KindBadPayload        = "bad_payload"
	KindInvalidTransition = "invalid_transition"
)

type Record struct {
	ID        int64           `json:"id"`
	Kind      string          `json:"kind"`
	Provider  string          `json:"provider,omitempty"`
	OrderRef  string          `json:"order_ref,omitempty"`
	Detail    string          `json:"detail"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Store struct{ DB *pgxpool.Pool }

func (s *Store) Record(ctx context.Context, kind, provider, orderRef, detail string, payload []byte) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO anomalies(kind, provider, order_ref, detail, payload)
		VALUES ($1,$2,$3,$4,$5)`, kind, provider, orderRef, detail, payload)
	return err
}

func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, kind, COALESCE(provider,''), COALESCE(order_ref,''), detail, payload, created_at
		FROM anomalies ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Kind, &r.Provider, &r.OrderRef, &r.Detail, &r.Payload, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
