package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sunucuics/ics-commerce-core/internal/checkout"
	"github.com/sunucuics/ics-commerce-core/internal/slots"
)

// AppointmentsHandler books service slots. Booking goes through the
// checkout orchestrator so appointments share the hold, commit and
// sweep lifecycle with product orders.
type AppointmentsHandler struct {
	Checkout *checkout.Service
	Calendar *slots.Calendar
}

type bookAppointmentReq struct {
	ExternalID string    `json:"external_id"`
	ServiceID  string    `json:"service_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end,omitempty"`
	TotalCents int64     `json:"total_cents"`
}

func (h *AppointmentsHandler) Register(r chi.Router) {
	r.Post("/appointments", h.book)
	r.Get("/appointments/mine", h.mine)
	r.Get("/appointments/busy", h.busy)
}

func (h *AppointmentsHandler) book(w http.ResponseWriter, r *http.Request) {
	var req bookAppointmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}
	if req.ExternalID == "" || req.ServiceID == "" || req.Start.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "external_id, service_id and start are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Checkout.Checkout(ctx, checkout.Request{
		ExternalID:       req.ExternalID,
		UserID:           IdentityFrom(ctx).UserID,
		ClientTotalCents: req.TotalCents,
		Slot: &checkout.SlotRequest{
			ServiceID: req.ServiceID,
			Start:     req.Start,
			End:       req.End,
		},
		SlotOnly: true,
		TraceID:  r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResp{
		OrderID:    res.Order.ID,
		TotalCents: res.Order.TotalCents,
		Idempotent: res.Idempotent,
	})
}

func (h *AppointmentsHandler) mine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Calendar.ListByUser(ctx, IdentityFrom(ctx).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// busy exposes occupied windows so clients can grey out taken slots.
// Defaults to the next 14 days.
func (h *AppointmentsHandler) busy(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	now := time.Now().UTC()
	from, to := now, now.AddDate(0, 0, 14)
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}

	out, err := h.Calendar.Busy(ctx, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
