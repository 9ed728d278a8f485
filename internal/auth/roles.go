package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Role is the single resolved marketplace role of a user. Semua cek otorisasi
// lewat sini, bukan query buyer/seller ad-hoc di tiap operasi.
type Role int

const (
	RoleNone Role = iota
	RoleBuyer
	RoleSeller
	RoleBoth
)

func (r Role) IsBuyer() bool  { return r == RoleBuyer || r == RoleBoth }
func (r Role) IsSeller() bool { return r == RoleSeller || r == RoleBoth }

// Directory resolves user ids to roles from the buyers/sellers tables.
type Directory struct{ DB *pgxpool.Pool }

func (d *Directory) Role(ctx context.Context, userID string) (Role, error) {
	var isBuyer, isSeller bool
	err := d.DB.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM buyers  WHERE user_id=$1),
		       EXISTS(SELECT 1 FROM sellers WHERE user_id=$1)`, userID).
		Scan(&isBuyer, &isSeller)
	if err != nil {
		return RoleNone, err
	}
	switch {
	case isBuyer && isSeller:
		return RoleBoth, nil
	case isBuyer:
		return RoleBuyer, nil
	case isSeller:
		return RoleSeller, nil
	}
	return RoleNone, nil
}
