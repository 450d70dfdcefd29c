package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sunucuics/ics-commerce-core/internal/metrics"
	"github.com/sunucuics/ics-commerce-core/internal/webhooks"
)

// WebhooksHandler is the provider-facing ingress. Everything except a
// storage failure is acknowledged with 200 so providers do not retry
// deliveries we have already recorded.
type WebhooksHandler struct {
	Payments        *webhooks.PaymentService
	Shipping        *webhooks.ShippingService
	Metrics         *metrics.Metrics
	PaymentProvider string
	ShipProvider    string
}

func (h *WebhooksHandler) Register(r chi.Router) {
	r.Post("/webhooks/payment", h.payment)
	r.Post("/webhooks/shipping", h.shipping)
}

func (h *WebhooksHandler) payment(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return
	}
	var ev webhooks.PaymentEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.EventID == "" || ev.OrderRef == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payment event"})
		return
	}
	if ev.Provider == "" {
		ev.Provider = h.PaymentProvider
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	outcome, err := h.Payments.Handle(ctx, ev, raw)
	h.ack(w, ev.Provider, outcome, err)
}

func (h *WebhooksHandler) shipping(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return
	}
	var ev webhooks.ShippingEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.EventID == "" || ev.OrderRef == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid shipping event"})
		return
	}
	if ev.Provider == "" {
		ev.Provider = h.ShipProvider
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	outcome, err := h.Shipping.Handle(ctx, ev, raw)
	h.ack(w, ev.Provider, outcome, err)
}

func (h *WebhooksHandler) ack(w http.ResponseWriter, provider string, outcome webhooks.Outcome, err error) {
	h.Metrics.WebhookEvents.WithLabelValues(provider, string(outcome)).Inc()
	if outcome == webhooks.OutcomeRetry {
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "RETRY"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}
