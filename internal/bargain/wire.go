package bargain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frame types exchanged over the per-connection channel.
const (
	// inbound
	FrameAuth           = "auth"
	FramePing           = "ping"
	FrameTyping         = "typing"
	FrameChatMessage    = "chat_message"
	FrameRecentActivity = "get_recent_activity"

	// outbound
	FrameAuthSuccess      = "auth_success"
	FrameRoomInfo         = "room_info"
	FrameNewBid           = "new_bid"
	FrameNewMessage       = "new_message"
	FrameBargainAccepted  = "bargain_accepted"
	FrameBargainRejected  = "bargain_rejected"
	FrameUserJoined       = "user_joined"
	FrameUserLeft         = "user_left"
	FramePong             = "pong"
	FrameRecentActivityRe = "recent_activity"
	FrameError            = "error"
)

// BidView is the wire shape of one bid.
type BidView struct {
	BidID     string          `json:"bid_id"`
	UserType  Role            `json:"user_type"`
	BidPrice  decimal.Decimal `json:"bid_price"`
	Quantity  int             `json:"quantity"`
	Message   string          `json:"message,omitempty"`
	IsCounter bool            `json:"is_counter_offer"`
	CreatedAt time.Time       `json:"created_at"`
}

func viewBid(b *Bid) BidView {
	return BidView{
		BidID:     b.ID,
		UserType:  b.Role,
		BidPrice:  b.Price,
		Quantity:  b.Quantity,
		Message:   b.Note,
		IsCounter: b.IsCounter,
		CreatedAt: b.CreatedAt,
	}
}

// MessageView is the wire shape of one chat message.
type MessageView struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func viewMessage(m *Message) MessageView {
	return MessageView{MessageID: m.ID, UserID: m.UserID, Content: m.Content, CreatedAt: m.CreatedAt}
}

// ViewBid renders one bid for HTTP responses.
func ViewBid(b *Bid) BidView { return viewBid(b) }

// ViewBids renders bids for HTTP responses, never nil.
func ViewBids(bids []Bid) []BidView {
	out := make([]BidView, 0, len(bids))
	for i := range bids {
		out = append(out, viewBid(&bids[i]))
	}
	return out
}

// ViewMessages renders messages for HTTP responses, never nil.
func ViewMessages(msgs []Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, viewMessage(&msgs[i]))
	}
	return out
}

type newBidFrame struct {
	Type string  `json:"type"`
	Bid  BidView `json:"bid"`
}

type newMessageFrame struct {
	Type    string      `json:"type"`
	Message MessageView `json:"message"`
}

type acceptedFrame struct {
	Type          string          `json:"type"`
	AcceptedBidID string          `json:"accepted_bid_id"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	Quantity      int             `json:"quantity"`
}

type rejectedFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type presenceFrame struct {
	Type      string    `json:"type"` // user_joined | user_left
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type typingFrame struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	IsTyping  bool      `json:"is_typing"`
	Timestamp time.Time `json:"timestamp"`
}

type roomInfoFrame struct {
	Type string       `json:"type"`
	Room roomInfoBody `json:"room"`
}

type roomInfoBody struct {
	RoomID       string          `json:"room_id"`
	RoomType     RoomKind        `json:"room_type"`
	Status       RoomStatus      `json:"status"`
	CurrentPrice decimal.Decimal `json:"current_bid_price"`
	Quantity     int             `json:"quantity"`
}

type recentActivityFrame struct {
	Type     string        `json:"type"`
	Bids     []BidView     `json:"bids"`
	Messages []MessageView `json:"messages"`
}

type pongFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type authSuccessFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
