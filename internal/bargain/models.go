package bargain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RoomKind string

const (
	KindPublic  RoomKind = "public"
	KindPrivate RoomKind = "private"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Room is one bargaining session. SellerID kosong untuk room public.
// Status dan CurrentPrice hanya dimutasi di bawah lock per room.
type Room struct {
	ID           string
	ProductID    string
	BuyerID      string
	SellerID     string
	Kind         RoomKind
	Status       RoomStatus
	InitialQty   int
	InitialPrice decimal.Decimal
	CurrentPrice decimal.Decimal
	Location     string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the room TTL has passed. Cek lazy saat disentuh,
// tidak ada background sweeper.
func (r *Room) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// Bid is append-only: tidak pernah di-update atau dihapus.
type Bid struct {
	ID        string
	RoomID    string
	UserID    string
	Role      Role
	Price     decimal.Decimal
	Quantity  int
	Note      string
	IsCounter bool
	CreatedAt time.Time
}

type MessageKind string

const (
	MessageText       MessageKind = "text"
	MessageOffer      MessageKind = "offer"
	MessageAcceptance MessageKind = "acceptance"
	MessageRejection  MessageKind = "rejection"
)

// Message is one chat event in a room, append-only like Bid.
type Message struct {
	ID        string
	RoomID    string
	UserID    string
	Kind      MessageKind
	Content   string
	CreatedAt time.Time
}

// Acceptance holds the binding terms of an accepted bargain.
type Acceptance struct {
	RoomID     string
	BidID      string
	FinalPrice decimal.Decimal
	Quantity   int
}

// PublicListing is one row of the open public bargains board for sellers.
type PublicListing struct {
	Room            Room
	ProductName     string
	ProductCategory string
	OriginalPrice   decimal.Decimal
	SellerResponses int
}
