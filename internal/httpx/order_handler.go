package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bargain-market.git/internal/inventory"
	"github.com/ariefcatur/go-bargain-market.git/internal/pricing"
	"github.com/ariefcatur/go-bargain-market.git/internal/redisx"
)

type OrderHandler struct {
	Svc   *inventory.Service
	Repo  *inventory.Repo
	Redis *redis.Client
}

func (h *OrderHandler) Register(r *chi.Mux, authed func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authed)
		r.Get("/products/{id}/quote", h.quote)
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
	})
}

type quoteView struct {
	ProductID         string              `json:"product_id"`
	Quantity          int                 `json:"quantity"`
	PurchaseType      pricing.PurchaseType `json:"purchase_type"`
	IsGroup           bool                `json:"is_group"`
	Lines             []pricing.LineQuote `json:"lines"`
	WeightedUnitPrice decimal.Decimal     `json:"weighted_unit_price"`
	Total             decimal.Decimal     `json:"total"`
	Savings           decimal.Decimal     `json:"savings"`
	SavingsPercent    decimal.Decimal     `json:"savings_percent"`
}

func viewQuote(q *inventory.QuoteResult, pt pricing.PurchaseType) quoteView {
	return quoteView{
		ProductID:         q.ProductID,
		Quantity:          q.Quantity,
		PurchaseType:      pt,
		IsGroup:           q.Group,
		Lines:             q.Pricing.Lines,
		WeightedUnitPrice: q.Pricing.WeightedUnitPrice,
		Total:             q.Pricing.Total,
		Savings:           q.Pricing.Savings,
		SavingsPercent:    q.Pricing.SavingsPercent,
	}
}

// quote: hitung harga tanpa menyentuh stok.
func (h *OrderHandler) quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	qty, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || qty <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be a positive integer"})
		return
	}
	pt, err := pricing.ParsePurchaseType(r.URL.Query().Get("purchase_type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	q, err := h.Svc.Quote(ctx, chi.URLParam(r, "id"), qty, pt)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewQuote(q, pt))
}

type createOrderReq struct {
	ExternalID   string `json:"external_id"`
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	PurchaseType string `json:"purchase_type"`
}

type orderView struct {
	OrderID      string               `json:"order_id"`
	BuyerID      string               `json:"buyer_id"`
	SellerID     string               `json:"seller_id"`
	ProductID    string               `json:"product_id"`
	Quantity     int                  `json:"quantity"`
	PurchaseType pricing.PurchaseType `json:"purchase_type"`
	IsGroup      bool                 `json:"is_group"`
	UnitPrice    decimal.Decimal      `json:"unit_price"`
	TotalPrice   decimal.Decimal      `json:"total_price"`
	Status       inventory.OrderStatus `json:"status"`
	RoomID       string               `json:"room_id,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

func viewOrder(o *inventory.Order) orderView {
	return orderView{
		OrderID:      o.ID,
		BuyerID:      o.BuyerID,
		SellerID:     o.SellerID,
		ProductID:    o.ProductID,
		Quantity:     o.Quantity,
		PurchaseType: o.PurchaseType,
		IsGroup:      o.Group,
		UnitPrice:    o.UnitPrice,
		TotalPrice:   o.TotalPrice,
		Status:       o.Status,
		RoomID:       o.RoomID,
		CreatedAt:    o.CreatedAt,
	}
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ExternalID == "" || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	pt, err := pricing.ParsePurchaseType(req.PurchaseType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast-path idempotency via redis, DB tetap jadi kebenaran.
	idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
	if ok, _ := redisx.Exists(ctx, h.Redis, idemKey); ok {
		if existing, err := h.Repo.OrderByExternalID(ctx, req.ExternalID); err == nil {
			writeJSON(w, http.StatusOK, viewOrder(existing))
			return
		}
	}
	if existing, err := h.Repo.OrderByExternalID(ctx, req.ExternalID); err == nil {
		_ = h.Redis.Set(ctx, idemKey, existing.ID, redisx.TTLIdempotency).Err()
		writeJSON(w, http.StatusOK, viewOrder(existing))
		return
	}

	order, _, err := h.Svc.AllocateAndPrice(ctx, inventory.OrderRequest{
		BuyerID:      UserID(r.Context()),
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		PurchaseType: pt,
		ExternalID:   req.ExternalID,
	})
	// duplikat ketahuan di dalam transaksi commit: request retry yang kalah
	// balapan tetap dapat order lama, bukan order kedua
	if errors.Is(err, inventory.ErrDuplicateOrder) {
		existing, lookupErr := h.Repo.OrderByExternalID(ctx, req.ExternalID)
		if lookupErr != nil {
			writeErr(w, lookupErr)
			return
		}
		_ = h.Redis.Set(ctx, idemKey, existing.ID, redisx.TTLIdempotency).Err()
		writeJSON(w, http.StatusOK, viewOrder(existing))
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	_ = h.Redis.Set(ctx, idemKey, order.ID, redisx.TTLIdempotency).Err()
	writeJSON(w, http.StatusCreated, viewOrder(order))
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Repo.Order(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	userID := UserID(r.Context())
	if o.BuyerID != userID && o.SellerID != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your order"})
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, offset := pageParams(r, 20)
	os, err := h.Repo.OrdersForUser(ctx, UserID(r.Context()), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]orderView, 0, len(os))
	for i := range os {
		out = append(out, viewOrder(&os[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
