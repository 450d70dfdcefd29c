package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sunucuics/ics-commerce-core/internal/cart"
	"github.com/sunucuics/ics-commerce-core/internal/catalog"
)

type CartHandler struct {
	Carts   *cart.Repo
	Catalog *catalog.Repo
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Post("/cart/items", h.addItem)
	r.Delete("/cart/items/{productID}", h.removeItem)
	r.Delete("/cart", h.clear)
	r.Get("/cart", h.get)
	r.Get("/cart/total", h.total)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing product_id"})
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	uid := IdentityFrom(ctx).UserID
	if err := h.Carts.AddItem(ctx, uid, req.ProductID, req.Qty); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.view(ctx, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	uid := IdentityFrom(ctx).UserID
	if err := h.Carts.RemoveItem(ctx, uid, chi.URLParam(r, "productID")); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.view(ctx, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Carts.Clear(ctx, IdentityFrom(ctx).UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view, err := h.view(ctx, IdentityFrom(ctx).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *CartHandler) total(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view, err := h.view(ctx, IdentityFrom(ctx).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        view.UserID,
		"total_quantity": view.TotalQuantity,
		"total_cents":    view.TotalCents,
	})
}

// view joins cart lines with the live catalog. Lines whose product has
// vanished are flagged unresolved rather than failing the whole cart,
// and an admin price change shows up here immediately.
func (h *CartHandler) view(ctx context.Context, userID string) (*cart.View, error) {
	lines, err := h.Carts.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := h.Catalog.ProductsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &cart.View{UserID: userID, Items: []cart.ViewLine{}}
	for _, l := range lines {
		view.TotalQuantity += l.Qty
		p, ok := products[l.ProductID]
		if !ok {
			view.Items = append(view.Items, cart.ViewLine{ProductID: l.ProductID, Qty: l.Qty, Unresolved: true})
			continue
		}
		sub := p.PriceCents * int64(l.Qty)
		view.TotalCents += sub
		view.Items = append(view.Items, cart.ViewLine{
			ProductID:     p.ID,
			Title:         p.Title,
			Stock:         p.Stock,
			PriceCents:    p.PriceCents,
			Qty:           l.Qty,
			SubtotalCents: sub,
		})
	}
	return view, nil
}
