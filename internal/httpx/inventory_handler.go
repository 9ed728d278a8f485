package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ariefcatur/go-bargain-market.git/internal/auth"
	"github.com/ariefcatur/go-bargain-market.git/internal/inventory"
	"github.com/ariefcatur/go-bargain-market.git/internal/pricing"
)

// LotsHandler is the seller-facing lot CRUD plus public availability.
type LotsHandler struct {
	Repo *inventory.Repo
	Dir  *auth.Directory
}

type lotReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Surplus   bool   `json:"is_surplus"`
	// ExpiryDate format 2006-01-02, kosong = tidak expire
	ExpiryDate string `json:"expiry_date,omitempty"`
	// DiscountConfig compact: "s=5,b=10,sg=12.5"
	DiscountConfig string `json:"discount_config,omitempty"`
}

type lotView struct {
	LotID          string     `json:"lot_id"`
	ProductID      string     `json:"product_id"`
	OwnerID        string     `json:"owner_id"`
	Quantity       int        `json:"quantity"`
	Surplus        bool       `json:"is_surplus"`
	ExpiryDate     string     `json:"expiry_date,omitempty"`
	DiscountConfig string     `json:"discount_config,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func viewLot(l *inventory.Lot) lotView {
	v := lotView{
		LotID:          l.ID,
		ProductID:      l.ProductID,
		OwnerID:        l.OwnerID,
		Quantity:       l.Quantity,
		Surplus:        l.Surplus,
		DiscountConfig: l.Discounts.Encode(),
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
	if l.ExpiryD != nil {
		v.ExpiryDate = l.ExpiryD.Format("2006-01-02")
	}
	return v
}

func (h *LotsHandler) Register(r *chi.Mux, authed func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authed)
		r.Post("/lots", h.createLot)
		r.Get("/lots", h.myLots)
		r.Get("/lots/{id}", h.getLot)
		r.Put("/lots/{id}", h.updateLot)
		r.Delete("/lots/{id}", h.deleteLot)
		r.Get("/products/{id}/availability", h.availability)
	})
}

// requireSeller: semua mutasi lot khusus seller.
func (h *LotsHandler) requireSeller(ctx context.Context, w http.ResponseWriter) (string, bool) {
	userID := UserID(ctx)
	role, err := h.Dir.Role(ctx, userID)
	if err != nil {
		writeErr(w, err)
		return "", false
	}
	if !role.IsSeller() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "seller account required"})
		return "", false
	}
	return userID, true
}

func (h *LotsHandler) parseLot(w http.ResponseWriter, r *http.Request, ownerID string) (*inventory.Lot, bool) {
	var req lotReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return nil, false
	}
	if req.Quantity < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must not be negative"})
		return nil, false
	}
	cfg, err := pricing.DecodeDiscountConfig(req.DiscountConfig)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	l := &inventory.Lot{
		ProductID: req.ProductID,
		OwnerID:   ownerID,
		Quantity:  req.Quantity,
		Surplus:   req.Surplus,
		Discounts: cfg,
	}
	if req.ExpiryDate != "" {
		t, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expiry_date must be YYYY-MM-DD"})
			return nil, false
		}
		l.ExpiryD = &t
	}
	return l, true
}

func (h *LotsHandler) createLot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ownerID, ok := h.requireSeller(ctx, w)
	if !ok {
		return
	}
	l, ok := h.parseLot(w, r, ownerID)
	if !ok {
		return
	}
	if l.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_id"})
		return
	}

	// lot hanya boleh nempel ke produk milik seller sendiri
	product, err := h.Repo.Product(ctx, l.ProductID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if product.SellerID != ownerID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "product belongs to another seller"})
		return
	}

	l.ID = uuid.NewString()
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	if err := h.Repo.CreateLot(ctx, l); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewLot(l))
}

func (h *LotsHandler) getLot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	l, err := h.Repo.Lot(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewLot(l))
}

func (h *LotsHandler) myLots(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ownerID, ok := h.requireSeller(ctx, w)
	if !ok {
		return
	}
	lots, err := h.Repo.LotsForOwner(ctx, ownerID, r.URL.Query().Get("surplus") == "true")
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]lotView, 0, len(lots))
	for i := range lots {
		out = append(out, viewLot(&lots[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LotsHandler) updateLot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ownerID, ok := h.requireSeller(ctx, w)
	if !ok {
		return
	}
	l, ok := h.parseLot(w, r, ownerID)
	if !ok {
		return
	}
	l.ID = chi.URLParam(r, "id")
	if err := h.Repo.UpdateLot(ctx, l); err != nil {
		writeErr(w, err)
		return
	}
	updated, err := h.Repo.Lot(ctx, l.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewLot(updated))
}

func (h *LotsHandler) deleteLot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ownerID, ok := h.requireSeller(ctx, w)
	if !ok {
		return
	}
	if err := h.Repo.DeleteLot(ctx, chi.URLParam(r, "id"), ownerID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// availability: total stok eligible sebuah produk hari ini.
func (h *LotsHandler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	productID := chi.URLParam(r, "id")
	lots, err := h.Repo.EligibleLots(ctx, productID, time.Now().UTC())
	if err != nil {
		writeErr(w, err)
		return
	}
	total := 0
	views := make([]lotView, 0, len(lots))
	for i := range lots {
		total += lots[i].Quantity
		views = append(views, viewLot(&lots[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": productID,
		"available":  total,
		"lots":       views,
	})
}
