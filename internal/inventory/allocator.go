package inventory

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrNegativeQuantity = errors.New("requested quantity must not be negative")

// InsufficientStockError: total stok eligible kurang dari permintaan.
// Shortfall = requested - available, dilaporkan apa adanya ke caller.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Shortfall() int { return e.Requested - e.Available }

// Allocation is one slice of a depletion plan: take Quantity units from Lot.
type Allocation struct {
	Lot      Lot
	Quantity int
}

// Allocate walks eligible lots oldest-first (FIFO, tie-break by lot id) and
// proposes a depletion plan. Read-only: lot quantities are not touched here;
// the decrement happens in the store commit as one atomic unit.
func Allocate(productID string, requested int, lots []Lot, on time.Time) ([]Allocation, error) {
	if requested < 0 {
		return nil, ErrNegativeQuantity
	}
	if requested == 0 {
		return nil, nil
	}

	eligible := make([]Lot, 0, len(lots))
	available := 0
	for _, l := range lots {
		if l.ProductID != productID || !l.Eligible(on) {
			continue
		}
		eligible = append(eligible, l)
		available += l.Quantity
	}
	if available < requested {
		return nil, &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	var plan []Allocation
	remaining := requested
	for _, l := range eligible {
		if remaining == 0 {
			break
		}
		take := l.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Allocation{Lot: l, Quantity: take})
		remaining -= take
	}
	return plan, nil
}
