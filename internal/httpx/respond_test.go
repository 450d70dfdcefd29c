package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunucuics/ics-commerce-core/internal/checkout"
	"github.com/sunucuics/ics-commerce-core/internal/orders"
	"github.com/sunucuics/ics-commerce-core/internal/reservation"
	"github.com/sunucuics/ics-commerce-core/internal/slots"
	"github.com/sunucuics/ics-commerce-core/internal/stock"
)

func TestWriteErrorStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&stock.InsufficientStockError{Lines: []stock.RejectedLine{{ProductID: "p1", Required: 2, Available: 1}}}, http.StatusConflict},
		{&checkout.PriceMismatchError{ClientCents: 100, ServerCents: 200}, http.StatusConflict},
		{slots.ErrSlotUnavailable, http.StatusConflict},
		{fmt.Errorf("wrap: %w", orders.ErrInvalidTransition), http.StatusConflict},
		{reservation.ErrHoldExpired, http.StatusGone},
		{checkout.ErrEmptyCheckout, http.StatusBadRequest},
		{slots.ErrInvalidWindow, http.StatusBadRequest},
		{orders.ErrNotFound, http.StatusNotFound},
		{slots.ErrServiceNotFound, http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		assert.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}

func TestWriteErrorInsufficientStockDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &stock.InsufficientStockError{
		Lines: []stock.RejectedLine{{ProductID: "p1", Required: 3, Available: 1}},
	})

	var body struct {
		Code    string               `json:"code"`
		Details []stock.RejectedLine `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Code)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "p1", body.Details[0].ProductID)
	assert.Equal(t, 3, body.Details[0].Required)
	assert.Equal(t, 1, body.Details[0].Available)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("pq: connection refused at 10.0.0.7:5432"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
	assert.Equal(t, "INTERNAL", body.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestWriteErrorPriceMismatchDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &checkout.PriceMismatchError{ClientCents: 900, ServerCents: 1000})

	var body struct {
		Code    string           `json:"code"`
		Details map[string]int64 `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PRICE_MISMATCH", body.Code)
	assert.Equal(t, int64(900), body.Details["client_cents"])
	assert.Equal(t, int64(1000), body.Details["server_cents"])
}
