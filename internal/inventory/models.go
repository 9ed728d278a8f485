package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bargain-market.git/internal/pricing"
)

// Lot is one batch of a product: own expiry, own discount tiers.
// Quantity hanya boleh turun lewat commit alokasi, tidak pernah negatif.
type Lot struct {
	ID        string
	ProductID string
	OwnerID   string
	Quantity  int
	Surplus   bool
	ExpiryD   *time.Time // date only, nil = tidak expire
	Discounts pricing.DiscountConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Eligible: masih ada stok dan belum lewat expiry pada tanggal `on`.
func (l Lot) Eligible(on time.Time) bool {
	if l.Quantity <= 0 {
		return false
	}
	if l.ExpiryD == nil {
		return true
	}
	day := on.Truncate(24 * time.Hour)
	return !l.ExpiryD.Before(day)
}

type Product struct {
	ID        string
	SellerID  string
	Name      string
	Category  string
	BasePrice decimal.Decimal
	CreatedAt time.Time
}

type OrderStatus string

const (
	OrderConfirmed OrderStatus = "confirmed"
	OrderRejected  OrderStatus = "rejected"
)

// Order is a single fulfilled purchase line. RoomID terisi kalau order lahir
// dari bargain yang di-accept.
type Order struct {
	ID           string
	BuyerID      string
	SellerID     string
	ProductID    string
	Quantity     int
	PurchaseType pricing.PurchaseType
	Group        bool
	UnitPrice    decimal.Decimal
	TotalPrice   decimal.Decimal
	Status       OrderStatus
	RoomID       string // optional
	ExternalID   string // idempotency key dari client, optional
	CreatedAt    time.Time
}
