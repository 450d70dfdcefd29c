package webhooks

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sunucuics/ics-commerce-core/internal/redisx"
)

// DedupStore keeps one row per (provider, event id) delivery. The
// insert-if-absent is the serialization point for concurrent replays of
// the same event; Redis only short-circuits the obvious ones.
type DedupStore struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

func (d *DedupStore) MarkProcessed(ctx context.Context, provider, eventID string, payload []byte) (bool, error) {
	key := fmt.Sprintf(redisx.KeyWebhookDedup, provider, eventID)
	if d.Redis != nil {
		if seen, _ := redisx.Exists(ctx, d.Redis, key); seen {
			return false, nil
		}
	}

	ct, err := d.DB.Exec(ctx, `
		INSERT INTO webhook_events(provider, event_id, payload)
		VALUES ($1,$2,$3)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, provider, eventID, payload)
	if err != nil {
		return false, err
	}
	first := ct.RowsAffected() == 1

	if d.Redis != nil {
		// best effort; the table already holds the truth
		_ = d.Redis.Set(ctx, key, "1", redisx.TTLDedup).Err()
	}
	return first, nil
}

// Forget removes the delivery record after a failed apply. Both the
// Redis mirror and the table row must go; a survivor of either would
// answer the provider's retry with duplicate and lose the event.
func (d *DedupStore) Forget(ctx context.Context, provider, eventID string) error {
	if d.Redis != nil {
		if err := d.Redis.Del(ctx, fmt.Sprintf(redisx.KeyWebhookDedup, provider, eventID)).Err(); err != nil {
			return err
		}
	}
	_, err := d.DB.Exec(ctx, `
		DELETE FROM webhook_events WHERE provider=$1 AND event_id=$2
	`, provider, eventID)
	return err
}
