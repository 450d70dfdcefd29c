package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/sunucuics/ics-commerce-core/internal/checkout"
	"github.com/sunucuics/ics-commerce-core/internal/metrics"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/redisx"
)

type CheckoutHandler struct {
	Checkout *checkout.Service
	Orders   *orders.Repo
	Redis    *redis.Client
	Metrics  *metrics.Metrics
}

type checkoutReq struct {
	ExternalID       string                `json:"external_id"`
	ClientTotalCents int64                 `json:"total_cents"`
	Slot             *checkout.SlotRequest `json:"slot,omitempty"`
}

type checkoutResp struct {
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
	Idempotent bool   `json:"idempotent"`
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}
	if req.ExternalID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing external_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	userID := IdentityFrom(ctx).UserID

	// Redis fast path for replays; the unique (user_id, external_id)
	// in the database is the real guarantee.
	idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, userID, req.ExternalID)
	if orderID, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && orderID != "" {
		if o, err := h.Orders.Get(ctx, orderID); err == nil && o.UserID == userID {
			h.Metrics.Checkouts.WithLabelValues("replay").Inc()
			writeJSON(w, http.StatusOK, checkoutResp{
				OrderID: o.ID, TotalCents: o.TotalCents, Idempotent: true,
			})
			return
		}
	}

	started := time.Now()
	res, err := h.Checkout.Checkout(ctx, checkout.Request{
		ExternalID:       req.ExternalID,
		UserID:           userID,
		ClientTotalCents: req.ClientTotalCents,
		Slot:             req.Slot,
		TraceID:          r.Header.Get("X-Request-Id"),
	})
	h.Metrics.CheckoutLatency.Observe(float64(time.Since(started).Milliseconds()))
	if err != nil {
		h.Metrics.Checkouts.WithLabelValues("rejected").Inc()
		writeError(w, err)
		return
	}
	h.Metrics.Checkouts.WithLabelValues("accepted").Inc()

	// warm the replay shortcut and the status cache for GET /orders/{id}
	_ = h.Redis.Set(ctx, idemKey, res.Order.ID, redisx.TTLIdempotency).Err()
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, res.Order.ID)
	if b, err := json.Marshal(res.Order); err == nil {
		_ = h.Redis.Set(ctx, statusKey, b, redisx.TTLStatusCache).Err()
	}

	writeJSON(w, http.StatusCreated, checkoutResp{
		OrderID:    res.Order.ID,
		TotalCents: res.Order.TotalCents,
		Idempotent: res.Idempotent,
	})
}
