package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestPriceSingleLotSubscription(t *testing.T) {
	lines := []Line{{
		LotID:    "lot-1",
		Quantity: 2,
		Discounts: DiscountConfig{
			{PurchaseType: PurchaseSubscription, Percent: money("10")},
		},
	}}

	q := Price(money("100"), lines, PurchaseSubscription, false)

	require.Len(t, q.Lines, 1)
	assert.Equal(t, "90", q.Lines[0].UnitPrice.String())
	assert.Equal(t, "90", q.WeightedUnitPrice.String())
	assert.Equal(t, "180", q.Total.String())
	assert.Equal(t, "20", q.Savings.String())
	assert.Equal(t, "10", q.SavingsPercent.String())
}

func TestPriceNoMatchingTierChargesFull(t *testing.T) {
	lines := []Line{{
		LotID:    "lot-1",
		Quantity: 3,
		Discounts: DiscountConfig{
			{PurchaseType: PurchaseSubscription, Percent: money("10")},
		},
	}}

	q := Price(money("100"), lines, PurchaseSoloSingletime, false)

	assert.Equal(t, "100", q.WeightedUnitPrice.String())
	assert.Equal(t, "300", q.Total.String())
	assert.True(t, q.Savings.IsZero())
}

func TestPriceWeightedAcrossLots(t *testing.T) {
	// lot A: 5% untuk solo, lot B: tanpa diskon
	lines := []Line{
		{LotID: "a", Quantity: 1, Discounts: DiscountConfig{
			{PurchaseType: PurchaseSoloSingletime, Percent: money("5")},
		}},
		{LotID: "b", Quantity: 3},
	}

	q := Price(money("100"), lines, PurchaseSoloSingletime, false)

	// (95 + 3*100) / 4 = 98.75
	assert.Equal(t, "98.75", q.WeightedUnitPrice.String())
	assert.Equal(t, "395", q.Total.String())
	assert.Equal(t, "5", q.Savings.String())
	assert.Equal(t, "1.25", q.SavingsPercent.String())
}

func TestPriceGroupTier(t *testing.T) {
	lines := []Line{{
		LotID:    "a",
		Quantity: 12,
		Discounts: DiscountConfig{
			{PurchaseType: PurchaseSoloSingletime, Group: false, Percent: money("5")},
			{PurchaseType: PurchaseSoloSingletime, Group: true, Percent: money("15")},
		},
	}}

	q := Price(money("200"), lines, PurchaseSoloSingletime, true)
	assert.Equal(t, "170", q.WeightedUnitPrice.String())
	assert.Equal(t, "2040", q.Total.String())
}

func TestPriceRoundingPerLineDoesNotSkewTotal(t *testing.T) {
	// 3.333...% diskon: unit display dibulatkan, total dihitung dari nilai exact
	lines := []Line{{
		LotID:    "a",
		Quantity: 3,
		Discounts: DiscountConfig{
			{PurchaseType: PurchaseSoloSingletime, Percent: money("33.33")},
		},
	}}

	q := Price(money("9.99"), lines, PurchaseSoloSingletime, false)

	assert.Equal(t, "6.66", q.Lines[0].UnitPrice.String())
	// exact: 9.99 * 0.6667 * 3 = 19.984...
	assert.Equal(t, "19.98", q.Total.String())
}

func TestPriceDeterministic(t *testing.T) {
	lines := []Line{
		{LotID: "a", Quantity: 2, Discounts: DiscountConfig{
			{PurchaseType: PurchaseSubscription, Percent: money("10")},
		}},
		{LotID: "b", Quantity: 5},
	}

	q1 := Price(money("42.42"), lines, PurchaseSubscription, false)
	q2 := Price(money("42.42"), lines, PurchaseSubscription, false)
	assert.Equal(t, q1, q2)
}

func TestPriceEmptyPlan(t *testing.T) {
	q := Price(money("100"), nil, PurchaseSoloSingletime, false)
	assert.Empty(t, q.Lines)
	assert.True(t, q.Total.IsZero())
	assert.True(t, q.WeightedUnitPrice.IsZero())
	assert.True(t, q.SavingsPercent.IsZero())
}
