package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sunucuics/ics-commerce-core/internal/cart"
	"github.com/sunucuics/ics-commerce-core/internal/catalog"
	"github.com/sunucuics/ics-commerce-core/internal/checkout"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/postgres"
	"github.com/sunucuics/ics-commerce-core/internal/reservation"
	"github.com/sunucuics/ics-commerce-core/internal/slots"
	"github.com/sunucuics/ics-commerce-core/internal/stock"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain failures onto the HTTP surface. Each response
// names the violated invariant; callers never see partial success.
func writeError(w http.ResponseWriter, err error) {
	var insufficient *stock.InsufficientStockError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusConflict, errorBody{
			Error: "insufficient stock", Code: "INSUFFICIENT_STOCK", Details: insufficient.Lines,
		})
		return
	}
	var mismatch *checkout.PriceMismatchError
	if errors.As(err, &mismatch) {
		writeJSON(w, http.StatusConflict, errorBody{
			Error: "price mismatch", Code: "PRICE_MISMATCH",
			Details: map[string]int64{"client_cents": mismatch.ClientCents, "server_cents": mismatch.ServerCents},
		})
		return
	}

	switch {
	case errors.Is(err, stock.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "INSUFFICIENT_STOCK"})
	case errors.Is(err, slots.ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, errorBody{Error: "time slot unavailable", Code: "SLOT_UNAVAILABLE"})
	case errors.Is(err, checkout.ErrPriceMismatch):
		writeJSON(w, http.StatusConflict, errorBody{Error: "price mismatch", Code: "PRICE_MISMATCH"})
	case errors.Is(err, orders.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "INVALID_TRANSITION"})
	case errors.Is(err, reservation.ErrHoldExpired):
		writeJSON(w, http.StatusGone, errorBody{Error: "reservation hold expired", Code: "HOLD_EXPIRED"})
	case errors.Is(err, checkout.ErrEmptyCheckout), errors.Is(err, cart.ErrInvalidQty),
		errors.Is(err, slots.ErrInvalidWindow):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "INVALID_REQUEST"})
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, catalog.ErrServiceNotFound),
		errors.Is(err, slots.ErrServiceNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "NOT_FOUND"})
	case postgres.IsConflict(err):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage conflict, retry", Code: "STORAGE_CONFLICT"})
	default:
		// unmapped failures stay server-side; driver detail is not for clients
		zap.L().Error("unhandled api error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"})
	}
}
