package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sunucuics/ics-commerce-core/internal/anomaly"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/reservation"
	"github.com/sunucuics/ics-commerce-core/internal/slots"
	"github.com/sunucuics/ics-commerce-core/internal/webhooks"
)

// AdminHandler is the operator surface. Mounted behind RequireAdmin.
type AdminHandler struct {
	Orders       *orders.Repo
	Anomalies    *anomaly.Store
	Reservations *reservation.Coordinator
	Calendar     *slots.Calendar
	Events       *orders.EventPublisher
}

type shippingUpdateReq struct {
	TrackingNumber string `json:"tracking_number,omitempty"`
	CarrierCode    string `json:"carrier_code,omitempty"`
	Status         string `json:"status,omitempty"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Get("/admin/orders", h.listOrders)
	r.Put("/admin/orders/{id}/shipping", h.updateShipping)
	r.Post("/admin/orders/{id}/reservation/release", h.releaseReservation)
	r.Delete("/admin/appointments/{orderID}", h.cancelAppointment)
	r.Get("/admin/anomalies", h.listAnomalies)
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := intParam(r, "limit", 50)
	offset := intParam(r, "offset", 0)
	out, err := h.Orders.ListAll(ctx, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// updateShipping records carrier data the operator entered by hand and
// optionally advances fulfillment through the same guarded transition
// the shipping webhook uses.
func (h *AdminHandler) updateShipping(w http.ResponseWriter, r *http.Request) {
	var req shippingUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	orderID := chi.URLParam(r, "id")

	if req.TrackingNumber != "" || req.CarrierCode != "" {
		if err := h.Orders.SetTracking(ctx, orderID, req.TrackingNumber, req.CarrierCode); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Status != "" {
		next := webhooks.MapProviderStatus(req.Status)
		if err := h.Orders.SetFulfillmentState(ctx, orderID, next); err != nil {
			writeError(w, err)
			return
		}
		h.Events.FulfillmentUpdated(orderID, next, req.TrackingNumber, req.CarrierCode)
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// releaseReservation is the manual override for stuck holds. Committed
// reservations stay committed; the response says which happened.
func (h *AdminHandler) releaseReservation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	released, err := h.Reservations.Release(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if released {
		h.Events.ReservationReleased(orderID, reservation.ReasonAdminOverride)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"released": released})
}

// cancelAppointment frees a booking whether held or committed, then
// releases any stock held under the same order.
func (h *AdminHandler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "orderID")
	if err := h.Calendar.Cancel(ctx, orderID); err != nil {
		writeError(w, err)
		return
	}
	released, err := h.Reservations.Release(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if released {
		h.Events.ReservationReleased(orderID, reservation.ReasonAdminOverride)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listAnomalies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Anomalies.List(ctx, intParam(r, "limit", 100))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
