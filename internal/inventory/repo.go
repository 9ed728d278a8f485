package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-bargain-market.git/internal/pricing"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStaleLot: stok lot berubah di antara baca plan dan commit; caller
	// harus re-alokasi dari snapshot baru.
	ErrStaleLot = errors.New("lot quantity changed since allocation")
	// ErrDuplicateOrder: external_id sudah pernah commit -> order lama yang berlaku.
	ErrDuplicateOrder = errors.New("order with this external id already exists")
)

// Repo is the pgx-backed lot/product/order store.
type Repo struct{ DB *pgxpool.Pool }

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

const lotColumns = `lot_id, product_id, owner_id, quantity, is_surplus, expiry_date,
	COALESCE(discount_config,''), created_at, updated_at`

func scanLot(row pgx.Row) (*Lot, error) {
	var (
		l       Lot
		expiry  sql.NullTime
		encoded string
	)
	err := row.Scan(&l.ID, &l.ProductID, &l.OwnerID, &l.Quantity, &l.Surplus, &expiry, &encoded, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expiry.Valid {
		t := expiry.Time
		l.ExpiryD = &t
	}
	cfg, err := pricing.DecodeDiscountConfig(encoded)
	if err != nil {
		return nil, fmt.Errorf("lot %s: %w", l.ID, err)
	}
	l.Discounts = cfg
	return &l, nil
}

func (r *Repo) CreateLot(ctx context.Context, l *Lot) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO inventory_lots(lot_id, product_id, owner_id, quantity, is_surplus, expiry_date, discount_config, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`,
		l.ID, l.ProductID, l.OwnerID, l.Quantity, l.Surplus, l.ExpiryD, l.Discounts.Encode(), l.CreatedAt)
	return err
}

func (r *Repo) Lot(ctx context.Context, lotID string) (*Lot, error) {
	return scanLot(r.DB.QueryRow(ctx,
		`SELECT `+lotColumns+` FROM inventory_lots WHERE lot_id=$1`, lotID))
}

// UpdateLot: quantity/discount/expiry/surplus, hanya oleh pemiliknya.
func (r *Repo) UpdateLot(ctx context.Context, l *Lot) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE inventory_lots
		SET quantity=$3, is_surplus=$4, expiry_date=$5, discount_config=$6, updated_at=now()
		WHERE lot_id=$1 AND owner_id=$2`,
		l.ID, l.OwnerID, l.Quantity, l.Surplus, l.ExpiryD, l.Discounts.Encode())
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteLot(ctx context.Context, lotID, ownerID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM inventory_lots WHERE lot_id=$1 AND owner_id=$2`, lotID, ownerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) lots(ctx context.Context, q string, args ...any) ([]Lot, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// EligibleLots: stok > 0 dan belum expired, urut FIFO.
func (r *Repo) EligibleLots(ctx context.Context, productID string, on time.Time) ([]Lot, error) {
	return r.lots(ctx, `
		SELECT `+lotColumns+` FROM inventory_lots
		WHERE product_id=$1 AND quantity > 0
		  AND (expiry_date IS NULL OR expiry_date >= $2::date)
		ORDER BY created_at, lot_id`, productID, on)
}

func (r *Repo) LotsForProduct(ctx context.Context, productID string, includeExpired bool, on time.Time) ([]Lot, error) {
	if includeExpired {
		return r.lots(ctx, `SELECT `+lotColumns+` FROM inventory_lots WHERE product_id=$1 ORDER BY created_at, lot_id`, productID)
	}
	return r.lots(ctx, `
		SELECT `+lotColumns+` FROM inventory_lots
		WHERE product_id=$1 AND (expiry_date IS NULL OR expiry_date >= $2::date)
		ORDER BY created_at, lot_id`, productID, on)
}

func (r *Repo) LotsForOwner(ctx context.Context, ownerID string, surplusOnly bool) ([]Lot, error) {
	if surplusOnly {
		return r.lots(ctx, `SELECT `+lotColumns+` FROM inventory_lots WHERE owner_id=$1 AND is_surplus ORDER BY created_at, lot_id`, ownerID)
	}
	return r.lots(ctx, `SELECT `+lotColumns+` FROM inventory_lots WHERE owner_id=$1 ORDER BY created_at, lot_id`, ownerID)
}

func (r *Repo) Product(ctx context.Context, productID string) (*Product, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT product_id, seller_id, name, COALESCE(category,''), price::text, created_at
		FROM products WHERE product_id=$1`, productID)
	var (
		p    Product
		base string
	)
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Category, &base, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.BasePrice = mustDecimal(base)
	return &p, nil
}

// CommitAllocation: tulis order, lock tiap lot (FOR UPDATE), verifikasi stok
// masih cukup, kurangi -> satu transaksi. Dua alokasi konkuren untuk lot yang
// sama tidak mungkin dua-duanya lolos over-allocate, dan external_id yang sama
// tidak mungkin commit dua kali (duplikat di-handle di dalam transaksi).
func (r *Repo) CommitAllocation(ctx context.Context, o *Order, plan []Allocation) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var room any
	if o.RoomID != "" {
		room = o.RoomID
	}
	var external any
	if o.ExternalID != "" {
		external = o.ExternalID
	}
	// insert duluan: request retry dengan external_id sama mentok di sini
	// sebelum sempat ngunci lot, apalagi mengurangi stok
	insert := `
		INSERT INTO orders(order_id, buyer_id, seller_id, product_id, quantity, purchase_type, is_group,
		                   unit_price, total_price, status, room_id, external_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	if o.ExternalID != "" {
		insert += ` ON CONFLICT (external_id) DO NOTHING`
	}
	ct, err := tx.Exec(ctx, insert,
		o.ID, o.BuyerID, o.SellerID, o.ProductID, o.Quantity, o.PurchaseType, o.Group,
		o.UnitPrice.String(), o.TotalPrice.String(), o.Status, room, external, o.CreatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrDuplicateOrder
	}

	for _, a := range plan {
		var current int
		if err := tx.QueryRow(ctx, `SELECT quantity FROM inventory_lots WHERE lot_id=$1 FOR UPDATE`, a.Lot.ID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrStaleLot
			}
			return err
		}
		if current < a.Quantity {
			// plan basi: ada commit lain yang mendahului
			return ErrStaleLot
		}
		if _, err := tx.Exec(ctx, `UPDATE inventory_lots SET quantity = quantity - $2, updated_at=now() WHERE lot_id=$1`, a.Lot.ID, a.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repo) Order(ctx context.Context, orderID string) (*Order, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT order_id, buyer_id, seller_id, product_id, quantity, purchase_type, is_group,
		       unit_price::text, total_price::text, status, COALESCE(room_id::text,''), COALESCE(external_id,''), created_at
		FROM orders WHERE order_id=$1`, orderID)
	return scanOrder(row)
}

func (r *Repo) OrderByExternalID(ctx context.Context, externalID string) (*Order, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT order_id, buyer_id, seller_id, product_id, quantity, purchase_type, is_group,
		       unit_price::text, total_price::text, status, COALESCE(room_id::text,''), COALESCE(external_id,''), created_at
		FROM orders WHERE external_id=$1`, externalID)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o           Order
		unit, total string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ProductID, &o.Quantity, &o.PurchaseType, &o.Group,
		&unit, &total, &o.Status, &o.RoomID, &o.ExternalID, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.UnitPrice = mustDecimal(unit)
	o.TotalPrice = mustDecimal(total)
	return &o, nil
}

// OrdersForUser: buyer lihat pembeliannya, seller lihat penjualannya.
func (r *Repo) OrdersForUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, buyer_id, seller_id, product_id, quantity, purchase_type, is_group,
		       unit_price::text, total_price::text, status, COALESCE(room_id::text,''), COALESCE(external_id,''), created_at
		FROM orders WHERE buyer_id=$1 OR seller_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
