package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bargain-market.git/internal/bargain"
	"github.com/ariefcatur/go-bargain-market.git/internal/redisx"
)

type BargainHandler struct {
	Svc   *bargain.Service
	Redis *redis.Client
}

type createRoomReq struct {
	ProductID    string          `json:"product_id"`
	SellerID     string          `json:"seller_id,omitempty"` // private only
	Quantity     int             `json:"quantity"`
	InitialPrice decimal.Decimal `json:"initial_bid_price"`
	Location     string          `json:"location_pincode,omitempty"`
	TTLMinutes   int             `json:"ttl_minutes,omitempty"`
}

type roomView struct {
	RoomID       string              `json:"room_id"`
	ProductID    string              `json:"product_id"`
	BuyerID      string              `json:"buyer_id"`
	SellerID     string              `json:"seller_id,omitempty"`
	RoomType     bargain.RoomKind    `json:"room_type"`
	Status       bargain.RoomStatus  `json:"status"`
	Quantity     int                 `json:"quantity"`
	InitialPrice decimal.Decimal     `json:"initial_bid_price"`
	CurrentPrice decimal.Decimal     `json:"current_bid_price"`
	Location     string              `json:"location_pincode,omitempty"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func viewRoom(r *bargain.Room) roomView {
	return roomView{
		RoomID:       r.ID,
		ProductID:    r.ProductID,
		BuyerID:      r.BuyerID,
		SellerID:     r.SellerID,
		RoomType:     r.Kind,
		Status:       r.Status,
		Quantity:     r.InitialQty,
		InitialPrice: r.InitialPrice,
		CurrentPrice: r.CurrentPrice,
		Location:     r.Location,
		ExpiresAt:    r.ExpiresAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (h *BargainHandler) Register(r *chi.Mux, authed func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authed)
		r.Post("/bargains/public", h.createPublic)
		r.Post("/bargains/private", h.createPrivate)
		r.Get("/bargains/public/available", h.listPublic)
		r.Get("/bargains/mine", h.myRooms)
		r.Get("/bargains/{id}", h.details)
		r.Get("/bargains/{id}/status", h.status)
		r.Post("/bargains/{id}/bids", h.placeBid)
		r.Post("/bargains/{id}/accept", h.accept)
		r.Post("/bargains/{id}/reject", h.reject)
	})
}

func (h *BargainHandler) create(w http.ResponseWriter, r *http.Request, kind bargain.RoomKind) {
	var req createRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	room, err := h.Svc.CreateRoom(ctx, bargain.CreateRoomInput{
		Kind:         kind,
		BuyerID:      UserID(r.Context()),
		SellerID:     req.SellerID,
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		InitialPrice: req.InitialPrice,
		Location:     req.Location,
		TTL:          time.Duration(req.TTLMinutes) * time.Minute,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheSnapshot(ctx, room)
	writeJSON(w, http.StatusCreated, viewRoom(room))
}

func (h *BargainHandler) createPublic(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, bargain.KindPublic)
}

func (h *BargainHandler) createPrivate(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, bargain.KindPrivate)
}

func (h *BargainHandler) listPublic(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, offset := pageParams(r, 20)
	listings, err := h.Svc.ListPublic(ctx, UserID(r.Context()), r.URL.Query().Get("location"), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	type listingView struct {
		Room            roomView        `json:"room"`
		ProductName     string          `json:"product_name"`
		ProductCategory string          `json:"product_category,omitempty"`
		OriginalPrice   decimal.Decimal `json:"original_price"`
		SellerResponses int             `json:"seller_responses"`
	}
	out := make([]listingView, 0, len(listings))
	for i := range listings {
		out = append(out, listingView{
			Room:            viewRoom(&listings[i].Room),
			ProductName:     listings[i].ProductName,
			ProductCategory: listings[i].ProductCategory,
			OriginalPrice:   listings[i].OriginalPrice,
			SellerResponses: listings[i].SellerResponses,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BargainHandler) myRooms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, offset := pageParams(r, 20)
	rooms, err := h.Svc.MyRooms(ctx, UserID(r.Context()),
		bargain.RoomKind(r.URL.Query().Get("type")),
		bargain.RoomStatus(r.URL.Query().Get("status")), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]roomView, 0, len(rooms))
	for i := range rooms {
		out = append(out, viewRoom(&rooms[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BargainHandler) details(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	room, bids, msgs, err := h.Svc.RoomDetails(ctx, chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheSnapshot(ctx, room)
	writeJSON(w, http.StatusOK, map[string]any{
		"room":     viewRoom(room),
		"bids":     bargain.ViewBids(bids),
		"messages": bargain.ViewMessages(msgs),
	})
}

// status: fast path dari redis snapshot, fallback DB. Hanya status + harga,
// tidak ada isi negosiasi.
func (h *BargainHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	roomID := chi.URLParam(r, "id")
	key := fmt.Sprintf(redisx.KeyRoomSnapshot, roomID)
	if cached, err := h.Redis.Get(ctx, key).Result(); err == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(cached))
		return
	}

	room, err := h.Svc.Room(ctx, roomID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheSnapshot(ctx, room)
	writeJSON(w, http.StatusOK, snapshot(room))
}

type roomSnapshot struct {
	RoomID       string             `json:"room_id"`
	Status       bargain.RoomStatus `json:"status"`
	CurrentPrice decimal.Decimal    `json:"current_bid_price"`
}

func snapshot(room *bargain.Room) roomSnapshot {
	return roomSnapshot{RoomID: room.ID, Status: room.Status, CurrentPrice: room.CurrentPrice}
}

func (h *BargainHandler) cacheSnapshot(ctx context.Context, room *bargain.Room) {
	b, err := json.Marshal(snapshot(room))
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyRoomSnapshot, room.ID)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLRoomSnapshot).Err()
}

func (h *BargainHandler) invalidateSnapshot(ctx context.Context, roomID string) {
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyRoomSnapshot, roomID)).Err()
}

type placeBidReq struct {
	Price     decimal.Decimal `json:"bid_price"`
	Quantity  int             `json:"quantity"`
	Message   string          `json:"message,omitempty"`
	IsCounter bool            `json:"is_counter_offer,omitempty"`
}

func (h *BargainHandler) placeBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	roomID := chi.URLParam(r, "id")
	bid, err := h.Svc.PlaceBid(ctx, roomID, UserID(r.Context()), bargain.BidInput{
		Price:     req.Price,
		Quantity:  req.Quantity,
		Note:      req.Message,
		IsCounter: req.IsCounter,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	h.invalidateSnapshot(ctx, roomID)
	writeJSON(w, http.StatusCreated, bargain.ViewBid(bid))
}

type acceptReq struct {
	BidID string `json:"bid_id"`
}

func (h *BargainHandler) accept(w http.ResponseWriter, r *http.Request) {
	var req acceptReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BidID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing bid_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	roomID := chi.URLParam(r, "id")
	acc, err := h.Svc.Accept(ctx, roomID, UserID(r.Context()), req.BidID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.invalidateSnapshot(ctx, roomID)
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":     acc.RoomID,
		"bid_id":      acc.BidID,
		"final_price": acc.FinalPrice,
		"quantity":    acc.Quantity,
		"status":      bargain.StatusAccepted,
	})
}

func (h *BargainHandler) reject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	roomID := chi.URLParam(r, "id")
	if err := h.Svc.Reject(ctx, roomID, UserID(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	h.invalidateSnapshot(ctx, roomID)
	writeJSON(w, http.StatusOK, map[string]any{"room_id": roomID, "status": bargain.StatusRejected})
}

func pageParams(r *http.Request, defLimit int) (limit, offset int) {
	limit = defLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
