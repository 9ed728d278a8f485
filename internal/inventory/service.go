package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-bargain-market.git/internal/bargain"
	kafkax "github.com/ariefcatur/go-bargain-market.git/internal/kafka"
	"github.com/ariefcatur/go-bargain-market.git/internal/pricing"
)

// commitAttempts: batas retry optimistic kalau plan keburu basi.
const commitAttempts = 3

// ErrInvalidQuantity: kuantitas order wajib positif. Beda dengan
// ErrNegativeQuantity milik allocator, yang membolehkan nol (plan kosong).
var ErrInvalidQuantity = errors.New("requested quantity must be positive")

// Store is what the allocation service needs from persistence. CommitAllocation
// wajib atomik: recheck stok + decrement + insert order, atau gagal utuh.
type Store interface {
	Product(ctx context.Context, productID string) (*Product, error)
	EligibleLots(ctx context.Context, productID string, on time.Time) ([]Lot, error)
	CommitAllocation(ctx context.Context, o *Order, plan []Allocation) error
}

type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service runs quotes and the atomic allocate-and-price commit, plus the
// fulfillment of accepted bargains off kafka.
type Service struct {
	Store          Store
	Dedup          Deduper
	ProducerOK     Publisher // publish order.allocated
	ProducerReject Publisher // publish order.rejected
	Log            *zap.Logger
	ServiceName    string
}

// QuoteResult pairs the proposed depletion plan with its pricing breakdown.
type QuoteResult struct {
	ProductID string
	Quantity  int
	Group     bool
	Plan      []Allocation
	Pricing   pricing.Quote
}

func planLines(plan []Allocation) []pricing.Line {
	lines := make([]pricing.Line, 0, len(plan))
	for _, a := range plan {
		lines = append(lines, pricing.Line{LotID: a.Lot.ID, Quantity: a.Quantity, Discounts: a.Lot.Discounts})
	}
	return lines
}

// Quote is read-only: plan dihitung ulang tiap panggilan, tidak ada cache,
// tidak ada mutasi stok.
func (s *Service) Quote(ctx context.Context, productID string, quantity int, pt pricing.PurchaseType) (*QuoteResult, error) {
	product, err := s.Store.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	lots, err := s.Store.EligibleLots(ctx, productID, now)
	if err != nil {
		return nil, err
	}
	plan, err := Allocate(productID, quantity, lots, now)
	if err != nil {
		return nil, err
	}
	group := pricing.IsGroupQuantity(quantity)
	return &QuoteResult{
		ProductID: productID,
		Quantity:  quantity,
		Group:     group,
		Plan:      plan,
		Pricing:   pricing.Price(product.BasePrice, planLines(plan), pt, group),
	}, nil
}

type OrderRequest struct {
	BuyerID      string
	ProductID    string
	Quantity     int
	PurchaseType pricing.PurchaseType
	RoomID       string // terisi kalau order hasil bargain accepted
	ExternalID   string
	// UnitPrice override: harga final hasil nego. Nil = pakai pricing engine.
	UnitPrice *decimal.Decimal
}

// AllocateAndPrice: plan + harga + decrement stok
// sebagai satu unit atomik. Plan yang keburu basi di-retry dari snapshot baru,
// maksimal commitAttempts kali.
func (s *Service) AllocateAndPrice(ctx context.Context, req OrderRequest) (*Order, *QuoteResult, error) {
	if req.Quantity <= 0 {
		return nil, nil, ErrInvalidQuantity
	}
	product, err := s.Store.Product(ctx, req.ProductID)
	if err != nil {
		return nil, nil, err
	}

	var lastErr error
	for attempt := 0; attempt < commitAttempts; attempt++ {
		now := time.Now().UTC()
		lots, err := s.Store.EligibleLots(ctx, req.ProductID, now)
		if err != nil {
			return nil, nil, err
		}
		plan, err := Allocate(req.ProductID, req.Quantity, lots, now)
		if err != nil {
			return nil, nil, err
		}

		group := pricing.IsGroupQuantity(req.Quantity)
		quote := pricing.Price(product.BasePrice, planLines(plan), req.PurchaseType, group)

		unit := quote.WeightedUnitPrice
		total := quote.Total
		if req.UnitPrice != nil {
			unit = *req.UnitPrice
			total = unit.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
		}

		order := &Order{
			ID:           uuid.NewString(),
			BuyerID:      req.BuyerID,
			SellerID:     product.SellerID,
			ProductID:    req.ProductID,
			Quantity:     req.Quantity,
			PurchaseType: req.PurchaseType,
			Group:        group,
			UnitPrice:    unit,
			TotalPrice:   total,
			Status:       OrderConfirmed,
			RoomID:       req.RoomID,
			ExternalID:   req.ExternalID,
			CreatedAt:    now,
		}

		err = s.Store.CommitAllocation(ctx, order, plan)
		if errors.Is(err, ErrStaleLot) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return order, &QuoteResult{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Group:     group,
			Plan:      plan,
			Pricing:   quote,
		}, nil
	}
	return nil, nil, lastErr
}

// HandleBargainAccepted: handler consumer fulfillment. Dedup via redis,
// alokasi di harga final hasil nego, publish allocated/rejected.
func (s *Service) HandleBargainAccepted(ctx context.Context, m kafkago.Message) error {
	var env kafkax.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != bargain.EventBargainAccepted {
		return nil // ignore
	}

	seen, _ := s.Dedup.Seen(ctx, env.EventID)
	if seen {
		return nil
	}
	if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
		s.Log.Warn("dedup mark failed", zap.String("event_id", env.EventID), zap.Error(err))
	}

	p, err := kafkax.UnwrapPayload[bargain.BargainAcceptedPayload](env.Payload)
	if err != nil {
		return err
	}

	pt := p.PurchaseType
	if pt == "" {
		pt = pricing.PurchaseSoloSingletime
	}
	order, _, err := s.AllocateAndPrice(ctx, OrderRequest{
		BuyerID:      p.BuyerID,
		ProductID:    p.ProductID,
		Quantity:     p.Quantity,
		PurchaseType: pt,
		RoomID:       p.RoomID,
		UnitPrice:    &p.FinalPrice,
	})

	var insufficient *InsufficientStockError
	if errors.As(err, &insufficient) {
		s.publishRejected(p.RoomID, insufficient, env.TraceID)
		return nil
	}
	if err != nil {
		return err
	}

	s.publishAllocated(order, env.TraceID)
	return nil
}

func (s *Service) publishAllocated(o *Order, trace string) {
	ev := kafkax.Envelope{
		EventID:       uuid.NewString(),
		EventType:     bargain.EventOrderAllocated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(bargain.OrderAllocatedPayload{
			OrderID:    o.ID,
			RoomID:     o.RoomID,
			ProductID:  o.ProductID,
			Quantity:   o.Quantity,
			UnitPrice:  o.UnitPrice,
			TotalPrice: o.TotalPrice,
		}),
	}
	s.ProducerOK.Publish([]byte(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(bargain.EventOrderAllocated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) publishRejected(roomID string, e *InsufficientStockError, trace string) {
	ev := kafkax.Envelope{
		EventID:       uuid.NewString(),
		EventType:     bargain.EventOrderRejected,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: roomID,
		Payload: kafkax.MustMarshal(bargain.OrderRejectedPayload{
			RoomID:    roomID,
			ProductID: e.ProductID,
			Reason:    "INSUFFICIENT_INVENTORY",
			Requested: e.Requested,
			Available: e.Available,
			Shortfall: e.Shortfall(),
		}),
	}
	s.ProducerReject.Publish([]byte(roomID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(bargain.EventOrderRejected)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
