package bargain

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-bargain-market.git/internal/auth"
	kafkax "github.com/ariefcatur/go-bargain-market.git/internal/kafka"
	"github.com/ariefcatur/go-bargain-market.git/internal/pricing"
)

// ProductInfo is the slice of the catalog the negotiation engine needs.
type ProductInfo struct {
	ID        string
	SellerID  string
	Name      string
	Category  string
	BasePrice decimal.Decimal
}

type Store interface {
	CreateRoom(ctx context.Context, r *Room) error
	Room(ctx context.Context, roomID string) (*Room, error)
	SetRoomStatus(ctx context.Context, roomID string, st RoomStatus) error
	SetCurrentPrice(ctx context.Context, roomID string, price decimal.Decimal) error
	InsertBid(ctx context.Context, b *Bid) error
	Bid(ctx context.Context, roomID, bidID string) (*Bid, error)
	InsertMessage(ctx context.Context, m *Message) error
	RecentBids(ctx context.Context, roomID string, limit int) ([]Bid, error)
	RecentMessages(ctx context.Context, roomID string, limit int) ([]Message, error)
	OpenPublicRooms(ctx context.Context, location string, limit, offset int) ([]PublicListing, error)
	RoomsForUser(ctx context.Context, userID string, kind RoomKind, status RoomStatus, limit, offset int) ([]Room, error)
	Product(ctx context.Context, productID string) (*ProductInfo, error)
}

type Directory interface {
	Role(ctx context.Context, userID string) (auth.Role, error)
}

// Publisher matches kafkax.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service owns the negotiation room state machine. Mutasi status dan
// current_price satu room diserialisasi lewat lock per room; antar room tidak
// pernah saling tunggu.
type Service struct {
	store    Store
	dir      Directory
	producer Publisher
	registry *Registry
	log      *zap.Logger
	name     string

	mu    sync.Mutex
	locks map[string]*roomLock
}

// roomLock: mutex per room dengan hitungan pemakai, supaya entri map bisa
// dibuang begitu tidak ada holder/waiter. Room terminal tidak ninggalin jejak.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(store Store, dir Directory, producer Publisher, registry *Registry, log *zap.Logger, serviceName string) *Service {
	return &Service{
		store:    store,
		dir:      dir,
		producer: producer,
		registry: registry,
		log:      log,
		name:     serviceName,
		locks:    make(map[string]*roomLock),
	}
}

func (s *Service) Registry() *Registry { return s.registry }

func (s *Service) lockRoom(roomID string) func() {
	s.mu.Lock()
	l, ok := s.locks[roomID]
	if !ok {
		l = &roomLock{}
		s.locks[roomID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, roomID)
		}
		s.mu.Unlock()
	}
}

type CreateRoomInput struct {
	Kind         RoomKind
	BuyerID      string // actor
	SellerID     string // wajib untuk private
	ProductID    string
	Quantity     int
	InitialPrice decimal.Decimal
	Location     string
	TTL          time.Duration // 0 = tanpa expiry
}

func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (*Room, error) {
	if in.Quantity <= 0 || !in.InitialPrice.IsPositive() {
		return nil, ErrInvalidArgument
	}

	role, err := s.dir.Role(ctx, in.BuyerID)
	if err != nil {
		return nil, err
	}
	if !role.IsBuyer() {
		return nil, ErrForbidden
	}

	product, err := s.store.Product(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	if in.Kind == KindPrivate {
		if in.SellerID == "" {
			return nil, ErrInvalidArgument
		}
		sellerRole, err := s.dir.Role(ctx, in.SellerID)
		if err != nil {
			return nil, err
		}
		if !sellerRole.IsSeller() {
			return nil, ErrNotFound
		}
		if product.SellerID != in.SellerID {
			return nil, ErrInvalidOwner
		}
	} else {
		in.SellerID = "" // public room tidak punya seller tetap
	}

	now := time.Now().UTC()
	room := &Room{
		ID:           uuid.NewString(),
		ProductID:    in.ProductID,
		BuyerID:      in.BuyerID,
		SellerID:     in.SellerID,
		Kind:         in.Kind,
		Status:       StatusActive,
		InitialQty:   in.Quantity,
		InitialPrice: in.InitialPrice,
		CurrentPrice: in.InitialPrice,
		Location:     in.Location,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.TTL > 0 {
		t := now.Add(in.TTL)
		room.ExpiresAt = &t
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// ensureActive enforces the terminal-state rule and the lazy expiry: room yang
// TTL-nya lewat ditransisikan ke closed saat disentuh, lalu operasinya gagal.
// Caller harus pegang lock room.
func (s *Service) ensureActive(ctx context.Context, room *Room) error {
	if room.Status.Terminal() {
		return ErrRoomNotActive
	}
	if room.Expired(time.Now().UTC()) {
		if err := s.store.SetRoomStatus(ctx, room.ID, StatusClosed); err != nil {
			s.log.Error("lazy close failed", zap.String("room_id", room.ID), zap.Error(err))
		}
		room.Status = StatusClosed
		return ErrExpired
	}
	return nil
}

// bidderRole resolves who the actor is allowed to bid as.
// Buyer selalu buyer_id room; di room public semua seller terverifikasi boleh
// ikut, di private hanya pasangan yang ditunjuk.
func (s *Service) bidderRole(ctx context.Context, room *Room, userID string) (Role, error) {
	if userID == room.BuyerID {
		return RoleBuyer, nil
	}
	switch room.Kind {
	case KindPrivate:
		if userID == room.SellerID {
			return RoleSeller, nil
		}
	case KindPublic:
		role, err := s.dir.Role(ctx, userID)
		if err != nil {
			return "", err
		}
		if role.IsSeller() {
			return RoleSeller, nil
		}
	}
	return "", ErrForbidden
}

type BidInput struct {
	Price     decimal.Decimal
	Quantity  int
	Note      string
	IsCounter bool
}

func (s *Service) PlaceBid(ctx context.Context, roomID, userID string, in BidInput) (*Bid, error) {
	if !in.Price.IsPositive() || in.Quantity <= 0 {
		return nil, ErrInvalidArgument
	}

	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureActive(ctx, room); err != nil {
		return nil, err
	}
	role, err := s.bidderRole(ctx, room, userID)
	if err != nil {
		return nil, err
	}

	bid := &Bid{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		Role:      role,
		Price:     in.Price,
		Quantity:  in.Quantity,
		Note:      in.Note,
		IsCounter: in.IsCounter,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertBid(ctx, bid); err != nil {
		return nil, err
	}
	// Bid terakhir selalu menang papan harga, arah naik/turun tidak dicek.
	if err := s.store.SetCurrentPrice(ctx, roomID, in.Price); err != nil {
		return nil, err
	}
	room.CurrentPrice = in.Price

	if note := strings.TrimSpace(in.Note); note != "" {
		offer := &Message{
			ID:        uuid.NewString(),
			RoomID:    roomID,
			UserID:    userID,
			Kind:      MessageOffer,
			Content:   note,
			CreatedAt: bid.CreatedAt,
		}
		if err := s.store.InsertMessage(ctx, offer); err != nil {
			s.log.Warn("offer note append failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}

	// Fan-out sesudah append durable; gagal kirim tidak membatalkan bid.
	s.registry.Broadcast(roomID, newBidFrame{Type: FrameNewBid, Bid: viewBid(bid)})
	return bid, nil
}

// canSettle: siapa yang boleh accept/reject. Public hanya buyer, private
// kedua pihak.
func canSettle(room *Room, userID string) bool {
	switch room.Kind {
	case KindPublic:
		return userID == room.BuyerID
	case KindPrivate:
		return userID == room.BuyerID || userID == room.SellerID
	}
	return false
}

func (s *Service) Accept(ctx context.Context, roomID, userID, bidID string) (*Acceptance, error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureActive(ctx, room); err != nil {
		return nil, err
	}
	if !canSettle(room, userID) {
		return nil, ErrForbidden
	}

	bid, err := s.store.Bid(ctx, roomID, bidID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(room.Status, StatusAccepted) {
		return nil, ErrRoomNotActive
	}
	if err := s.store.SetRoomStatus(ctx, roomID, StatusAccepted); err != nil {
		return nil, err
	}
	room.Status = StatusAccepted

	now := time.Now().UTC()
	closing := &Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		Kind:      MessageAcceptance,
		Content:   "accepted bid " + bidID,
		CreatedAt: now,
	}
	if err := s.store.InsertMessage(ctx, closing); err != nil {
		s.log.Warn("acceptance message append failed", zap.String("room_id", roomID), zap.Error(err))
	}

	s.registry.Broadcast(roomID, acceptedFrame{
		Type:          FrameBargainAccepted,
		AcceptedBidID: bid.ID,
		FinalPrice:    bid.Price,
		Quantity:      bid.Quantity,
	})
	s.publishAccepted(room, bid, now)

	return &Acceptance{RoomID: roomID, BidID: bid.ID, FinalPrice: bid.Price, Quantity: bid.Quantity}, nil
}

func (s *Service) publishAccepted(room *Room, bid *Bid, at time.Time) {
	sellerID := room.SellerID
	if sellerID == "" && bid.Role == RoleSeller {
		sellerID = bid.UserID
	}
	ev := kafkax.Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventBargainAccepted,
		EventVersion:  1,
		OccurredAt:    at,
		Producer:      s.name,
		CorrelationID: room.ID,
		Payload: kafkax.MustMarshal(BargainAcceptedPayload{
			RoomID:       room.ID,
			BidID:        bid.ID,
			ProductID:    room.ProductID,
			BuyerID:      room.BuyerID,
			SellerID:     sellerID,
			FinalPrice:   bid.Price,
			Quantity:     bid.Quantity,
			PurchaseType: pricing.PurchaseSoloSingletime,
			AcceptedAt:   at,
		}),
	}
	s.producer.Publish(PartitionKey(room.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventBargainAccepted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) Reject(ctx context.Context, roomID, userID string) error {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.store.Room(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.ensureActive(ctx, room); err != nil {
		return err
	}
	if !canSettle(room, userID) {
		return ErrForbidden
	}
	if !CanTransition(room.Status, StatusRejected) {
		return ErrRoomNotActive
	}
	if err := s.store.SetRoomStatus(ctx, roomID, StatusRejected); err != nil {
		return err
	}
	room.Status = StatusRejected

	closing := &Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		Kind:      MessageRejection,
		Content:   "bargain rejected",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, closing); err != nil {
		s.log.Warn("rejection message append failed", zap.String("room_id", roomID), zap.Error(err))
	}

	s.registry.Broadcast(roomID, rejectedFrame{Type: FrameBargainRejected, RoomID: roomID, UserID: userID})
	return nil
}

// CanAccess mirrors the bid authorization for read/subscribe access.
func (s *Service) CanAccess(ctx context.Context, room *Room, userID string) (bool, error) {
	if userID == room.BuyerID || (room.SellerID != "" && userID == room.SellerID) {
		return true, nil
	}
	if room.Kind == KindPublic {
		role, err := s.dir.Role(ctx, userID)
		if err != nil {
			return false, err
		}
		return role.IsSeller(), nil
	}
	return false, nil
}

func (s *Service) Room(ctx context.Context, roomID string) (*Room, error) {
	return s.store.Room(ctx, roomID)
}

// RoomDetails returns the room plus its recent activity (10 bid, 10 pesan),
// access-checked with the same rule as the gateway.
func (s *Service) RoomDetails(ctx context.Context, roomID, userID string) (*Room, []Bid, []Message, error) {
	room, err := s.store.Room(ctx, roomID)
	if err != nil {
		return nil, nil, nil, err
	}
	ok, err := s.CanAccess(ctx, room, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !ok {
		return nil, nil, nil, ErrForbidden
	}
	bids, err := s.store.RecentBids(ctx, roomID, 10)
	if err != nil {
		return nil, nil, nil, err
	}
	msgs, err := s.store.RecentMessages(ctx, roomID, 10)
	if err != nil {
		return nil, nil, nil, err
	}
	return room, bids, msgs, nil
}

// AppendChat persists a text message and fans it out.
func (s *Service) AppendChat(ctx context.Context, roomID, userID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidArgument
	}
	msg := &Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		Kind:      MessageText,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.registry.Broadcast(roomID, newMessageFrame{Type: FrameNewMessage, Message: viewMessage(msg)})
	return msg, nil
}

// RecentActivity: 10 bid dan 20 pesan terakhir, terbaru duluan.
func (s *Service) RecentActivity(ctx context.Context, roomID string) ([]Bid, []Message, error) {
	bids, err := s.store.RecentBids(ctx, roomID, 10)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.store.RecentMessages(ctx, roomID, 20)
	if err != nil {
		return nil, nil, err
	}
	return bids, msgs, nil
}

// ListPublic: papan bargain public yang masih buka, khusus seller.
func (s *Service) ListPublic(ctx context.Context, userID, location string, limit, offset int) ([]PublicListing, error) {
	role, err := s.dir.Role(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !role.IsSeller() {
		return nil, ErrForbidden
	}
	return s.store.OpenPublicRooms(ctx, location, limit, offset)
}

func (s *Service) MyRooms(ctx context.Context, userID string, kind RoomKind, status RoomStatus, limit, offset int) ([]Room, error) {
	return s.store.RoomsForUser(ctx, userID, kind, status, limit, offset)
}
