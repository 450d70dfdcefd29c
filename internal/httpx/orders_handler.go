package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/redisx"
)

type OrdersHandler struct {
	Orders *orders.Repo
	Redis  *redis.Client
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Get("/orders/{id}/tracking", h.tracking)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Orders.ListByUser(ctx, IdentityFrom(ctx).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	id := IdentityFrom(ctx)

	// cache first, database as fallback
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		var o orders.Order
		if json.Unmarshal([]byte(s), &o) == nil && (o.UserID == id.UserID || id.Role == "admin") {
			writeJSON(w, http.StatusOK, &o)
			return
		}
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if o.UserID != id.UserID && id.Role != "admin" {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "not your order", Code: "FORBIDDEN"})
		return
	}
	if b, err := json.Marshal(o); err == nil {
		_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) tracking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	id := IdentityFrom(ctx)
	if o.UserID != id.UserID && id.Role != "admin" {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "not your order", Code: "FORBIDDEN"})
		return
	}
	if o.TrackingNumber == "" {
		writeJSON(w, http.StatusOK, map[string]string{"detail": "no tracking information available"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"tracking_number": o.TrackingNumber,
		"carrier":         o.CarrierCode,
		"status":          string(o.FulfillmentState),
	})
}
