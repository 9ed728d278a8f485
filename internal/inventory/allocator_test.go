package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lot(id string, qty int, created time.Time) Lot {
	return Lot{ID: id, ProductID: "p1", Quantity: qty, CreatedAt: created}
}

func TestAllocateFIFOAcrossLots(t *testing.T) {
	now := time.Now().UTC()
	lots := []Lot{
		lot("b", 5, now.Add(time.Hour)), // lebih baru
		lot("a", 5, now),                // lebih tua, harus habis duluan
	}

	plan, err := Allocate("p1", 7, lots, now)
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, "a", plan[0].Lot.ID)
	assert.Equal(t, 5, plan[0].Quantity)
	assert.Equal(t, "b", plan[1].Lot.ID)
	assert.Equal(t, 2, plan[1].Quantity)
}

func TestAllocateTieBreakByLotID(t *testing.T) {
	now := time.Now().UTC()
	lots := []Lot{
		lot("z", 1, now),
		lot("a", 1, now),
	}

	plan, err := Allocate("p1", 1, lots, now)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "a", plan[0].Lot.ID)
}

func TestAllocateInsufficientStock(t *testing.T) {
	now := time.Now().UTC()
	lots := []Lot{lot("a", 2, now), lot("b", 2, now)}

	_, err := Allocate("p1", 7, lots, now)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 7, insufficient.Requested)
	assert.Equal(t, 4, insufficient.Available)
	assert.Equal(t, 3, insufficient.Shortfall())

	// input tidak dimutasi
	assert.Equal(t, 2, lots[0].Quantity)
	assert.Equal(t, 2, lots[1].Quantity)
}

func TestAllocateSkipsExpiredAndEmptyLots(t *testing.T) {
	now := time.Now().UTC()
	yesterday := now.Add(-48 * time.Hour)
	expired := lot("old", 100, now.Add(-time.Hour))
	expired.ExpiryD = &yesterday
	empty := lot("empty", 0, now.Add(-time.Hour))

	lots := []Lot{expired, empty, lot("fresh", 3, now)}

	plan, err := Allocate("p1", 3, lots, now)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "fresh", plan[0].Lot.ID)
}

func TestAllocateExpiryIsDateGranular(t *testing.T) {
	// expiry hari ini = masih eligible sepanjang hari itu
	now := time.Date(2026, 8, 28, 17, 0, 0, 0, time.UTC)
	today := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	l := lot("today", 2, now.Add(-time.Hour))
	l.ExpiryD = &today

	plan, err := Allocate("p1", 2, []Lot{l}, now)
	require.NoError(t, err)
	require.Len(t, plan, 1)
}

func TestAllocateIgnoresOtherProducts(t *testing.T) {
	now := time.Now().UTC()
	other := Lot{ID: "x", ProductID: "p2", Quantity: 10, CreatedAt: now}

	_, err := Allocate("p1", 1, []Lot{other}, now)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Available)
}

func TestAllocateZeroAndNegative(t *testing.T) {
	now := time.Now().UTC()
	lots := []Lot{lot("a", 5, now)}

	plan, err := Allocate("p1", 0, lots, now)
	require.NoError(t, err)
	assert.Nil(t, plan)

	_, err = Allocate("p1", -1, lots, now)
	assert.ErrorIs(t, err, ErrNegativeQuantity)
}

func TestAllocateExactFit(t *testing.T) {
	now := time.Now().UTC()
	plan, err := Allocate("p1", 5, []Lot{lot("a", 5, now)}, now)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, 5, plan[0].Quantity)
}
