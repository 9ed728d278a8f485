package bargain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the pgx-backed Store.
type Repo struct{ DB *pgxpool.Pool }

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (r *Repo) CreateRoom(ctx context.Context, room *Room) error {
	var seller any
	if room.SellerID != "" {
		seller = room.SellerID
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO bargain_rooms(
			room_id, product_id, buyer_id, seller_id, room_type, status,
			initial_quantity, initial_bid_price, current_bid_price,
			location_pincode, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		room.ID, room.ProductID, room.BuyerID, seller, room.Kind, room.Status,
		room.InitialQty, room.InitialPrice.String(), room.CurrentPrice.String(),
		room.Location, room.ExpiresAt, room.CreatedAt,
	)
	return err
}

func (r *Repo) Room(ctx context.Context, roomID string) (*Room, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT room_id, product_id, buyer_id, COALESCE(seller_id::text, ''), room_type, status,
		       initial_quantity, initial_bid_price::text, current_bid_price::text,
		       COALESCE(location_pincode, ''), expires_at, created_at, updated_at
		FROM bargain_rooms WHERE room_id=$1`, roomID)

	var (
		room                  Room
		initial, current      string
		expiresAt             sql.NullTime
		createdAt, updatedAt  time.Time
	)
	err := row.Scan(&room.ID, &room.ProductID, &room.BuyerID, &room.SellerID, &room.Kind, &room.Status,
		&room.InitialQty, &initial, &current, &room.Location, &expiresAt, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	room.InitialPrice = mustDecimal(initial)
	room.CurrentPrice = mustDecimal(current)
	if expiresAt.Valid {
		t := expiresAt.Time
		room.ExpiresAt = &t
	}
	room.CreatedAt = createdAt
	room.UpdatedAt = updatedAt
	return &room, nil
}

func (r *Repo) SetRoomStatus(ctx context.Context, roomID string, st RoomStatus) error {
	ct, err := r.DB.Exec(ctx, `UPDATE bargain_rooms SET status=$2, updated_at=now() WHERE room_id=$1`, roomID, st)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetCurrentPrice(ctx context.Context, roomID string, price decimal.Decimal) error {
	ct, err := r.DB.Exec(ctx, `UPDATE bargain_rooms SET current_bid_price=$2, updated_at=now() WHERE room_id=$1`, roomID, price.String())
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) InsertBid(ctx context.Context, b *Bid) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO bargain_bids(bid_id, room_id, user_id, user_type, bid_price, quantity, message, is_counter_offer, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.RoomID, b.UserID, b.Role, b.Price.String(), b.Quantity, b.Note, b.IsCounter, b.CreatedAt)
	return err
}

func (r *Repo) Bid(ctx context.Context, roomID, bidID string) (*Bid, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT bid_id, room_id, user_id, user_type, bid_price::text, quantity, COALESCE(message,''), is_counter_offer, created_at
		FROM bargain_bids WHERE bid_id=$1 AND room_id=$2`, bidID, roomID)
	var (
		b     Bid
		price string
	)
	err := row.Scan(&b.ID, &b.RoomID, &b.UserID, &b.Role, &price, &b.Quantity, &b.Note, &b.IsCounter, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Price = mustDecimal(price)
	return &b, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO bargain_messages(message_id, room_id, user_id, message_type, content, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.RoomID, m.UserID, m.Kind, m.Content, m.CreatedAt)
	return err
}

func (r *Repo) RecentBids(ctx context.Context, roomID string, limit int) ([]Bid, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT bid_id, room_id, user_id, user_type, bid_price::text, quantity, COALESCE(message,''), is_counter_offer, created_at
		FROM bargain_bids WHERE room_id=$1
		ORDER BY created_at DESC LIMIT $2`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bid
	for rows.Next() {
		var (
			b     Bid
			price string
		)
		if err := rows.Scan(&b.ID, &b.RoomID, &b.UserID, &b.Role, &price, &b.Quantity, &b.Note, &b.IsCounter, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Price = mustDecimal(price)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) RecentMessages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT message_id, room_id, user_id, message_type, content, created_at
		FROM bargain_messages WHERE room_id=$1
		ORDER BY created_at DESC LIMIT $2`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Kind, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) OpenPublicRooms(ctx context.Context, location string, limit, offset int) ([]PublicListing, error) {
	q := `
		SELECT br.room_id, br.product_id, br.buyer_id, br.room_type, br.status,
		       br.initial_quantity, br.initial_bid_price::text, br.current_bid_price::text,
		       COALESCE(br.location_pincode,''), br.expires_at, br.created_at, br.updated_at,
		       p.name, COALESCE(p.category,''), p.price::text,
		       (SELECT COUNT(*) FROM bargain_bids bb WHERE bb.room_id = br.room_id AND bb.user_type = 'seller')
		FROM bargain_rooms br
		JOIN products p ON p.product_id = br.product_id
		WHERE br.room_type = 'public' AND br.status = 'active'
		  AND (br.expires_at IS NULL OR br.expires_at > now())`
	args := []any{}
	if location != "" {
		q += fmt.Sprintf(" AND br.location_pincode = $%d", len(args)+1)
		args = append(args, location)
	}
	q += fmt.Sprintf(" ORDER BY br.created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PublicListing
	for rows.Next() {
		var (
			l                       PublicListing
			initial, current, base  string
			expiresAt               sql.NullTime
		)
		if err := rows.Scan(&l.Room.ID, &l.Room.ProductID, &l.Room.BuyerID, &l.Room.Kind, &l.Room.Status,
			&l.Room.InitialQty, &initial, &current, &l.Room.Location, &expiresAt,
			&l.Room.CreatedAt, &l.Room.UpdatedAt,
			&l.ProductName, &l.ProductCategory, &base, &l.SellerResponses); err != nil {
			return nil, err
		}
		l.Room.InitialPrice = mustDecimal(initial)
		l.Room.CurrentPrice = mustDecimal(current)
		l.OriginalPrice = mustDecimal(base)
		if expiresAt.Valid {
			t := expiresAt.Time
			l.Room.ExpiresAt = &t
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) RoomsForUser(ctx context.Context, userID string, kind RoomKind, status RoomStatus, limit, offset int) ([]Room, error) {
	q := `
		SELECT room_id, product_id, buyer_id, COALESCE(seller_id::text,''), room_type, status,
		       initial_quantity, initial_bid_price::text, current_bid_price::text,
		       COALESCE(location_pincode,''), expires_at, created_at, updated_at
		FROM bargain_rooms
		WHERE (buyer_id = $1 OR seller_id = $1)`
	args := []any{userID}
	if kind != "" {
		q += fmt.Sprintf(" AND room_type = $%d", len(args)+1)
		args = append(args, kind)
	}
	if status != "" {
		q += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, status)
	}
	q += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		var (
			room             Room
			initial, current string
			expiresAt        sql.NullTime
		)
		if err := rows.Scan(&room.ID, &room.ProductID, &room.BuyerID, &room.SellerID, &room.Kind, &room.Status,
			&room.InitialQty, &initial, &current, &room.Location, &expiresAt, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		room.InitialPrice = mustDecimal(initial)
		room.CurrentPrice = mustDecimal(current)
		if expiresAt.Valid {
			t := expiresAt.Time
			room.ExpiresAt = &t
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (r *Repo) Product(ctx context.Context, productID string) (*ProductInfo, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT product_id, seller_id, name, COALESCE(category,''), price::text
		FROM products WHERE product_id=$1`, productID)
	var (
		p    ProductInfo
		base string
	)
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Category, &base)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.BasePrice = mustDecimal(base)
	return &p, nil
}
