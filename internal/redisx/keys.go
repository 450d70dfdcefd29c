package redisx

import "time"

const (
	// Idempotent checkout: idem:checkout:{user_id}:{external_id} ->
	// order_id. Scoped per user to match the database constraint.
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Cached order snapshot: order_status:{order_id} -> JSON body
	KeyOrderStatus = "order_status:%s"

	// Webhook dedup fast path: dedup:{provider}:{event_id}.
	// The webhook_events table stays the source of truth; this only
	// short-circuits obvious replays.
	KeyWebhookDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
