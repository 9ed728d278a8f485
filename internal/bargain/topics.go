package bargain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bargain-market.git/internal/pricing"
)

const (
	TopicBargainAccepted = "bargain.accepted"
	TopicOrderAllocated  = "order.allocated"
	TopicOrderRejected   = "order.rejected"
)

const (
	EventBargainAccepted = "BargainAccepted"
	EventOrderAllocated  = "OrderAllocated"
	EventOrderRejected   = "OrderRejected"
)

// Partition key = room_id, supaya semua event 1 room maintain urutan.
func PartitionKey(roomID string) []byte { return []byte(roomID) }

// BargainAcceptedPayload carries the binding terms for fulfillment.
type BargainAcceptedPayload struct {
	RoomID       string               `json:"room_id"`
	BidID        string               `json:"bid_id"`
	ProductID    string               `json:"product_id"`
	BuyerID      string               `json:"buyer_id"`
	SellerID     string               `json:"seller_id"`
	FinalPrice   decimal.Decimal      `json:"final_price"`
	Quantity     int                  `json:"quantity"`
	PurchaseType pricing.PurchaseType `json:"purchase_type"`
	AcceptedAt   time.Time            `json:"accepted_at"`
}

type OrderAllocatedPayload struct {
	OrderID    string          `json:"order_id"`
	RoomID     string          `json:"room_id,omitempty"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderRejectedPayload struct {
	RoomID    string `json:"room_id,omitempty"`
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"` // e.g. INSUFFICIENT_INVENTORY
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Shortfall int    `json:"shortfall"`
}
