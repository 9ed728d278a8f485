package pricing

import "github.com/shopspring/decimal"

// Line is one allocated slice of a plan: qty taken from a lot plus the lot's
// discount configuration.
type Line struct {
	LotID     string
	Quantity  int
	Discounts DiscountConfig
}

// LineQuote is the priced version of a Line. UnitPrice sudah dibulatkan 2 desimal.
type LineQuote struct {
	LotID     string          `json:"lot_id"`
	Quantity  int             `json:"quantity"`
	Percent   decimal.Decimal `json:"discount_percent"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Quote struct {
	Lines             []LineQuote     `json:"lines"`
	WeightedUnitPrice decimal.Decimal `json:"weighted_unit_price"`
	Total             decimal.Decimal `json:"total"`
	Savings           decimal.Decimal `json:"savings"`
	SavingsPercent    decimal.Decimal `json:"savings_percent"`
}

var hundred = decimal.NewFromInt(100)

// Price applies each line's discount tier to the product base price and
// aggregates. Per-line unit prices are rounded for display; aggregation runs on
// the exact values so rounding error tidak numpuk antar lot. Pure function:
// same plan in, same quote out.
func Price(basePrice decimal.Decimal, lines []Line, pt PurchaseType, group bool) Quote {
	q := Quote{Lines: make([]LineQuote, 0, len(lines))}

	totalQty := decimal.Zero
	cost := decimal.Zero
	for _, l := range lines {
		pct := l.Discounts.Resolve(pt, group)
		unit := basePrice.Mul(decimal.NewFromInt(1).Sub(pct.Div(hundred)))
		qty := decimal.NewFromInt(int64(l.Quantity))

		q.Lines = append(q.Lines, LineQuote{
			LotID:     l.LotID,
			Quantity:  l.Quantity,
			Percent:   pct,
			UnitPrice: unit.Round(2),
		})
		totalQty = totalQty.Add(qty)
		cost = cost.Add(unit.Mul(qty))
	}

	q.Total = cost.Round(2)
	if totalQty.IsZero() {
		q.WeightedUnitPrice = decimal.Zero
		q.Savings = decimal.Zero
		q.SavingsPercent = decimal.Zero
		return q
	}

	q.WeightedUnitPrice = cost.Div(totalQty).Round(2)

	full := basePrice.Mul(totalQty)
	q.Savings = full.Sub(cost).Round(2)
	if full.IsZero() {
		q.SavingsPercent = decimal.Zero
	} else {
		q.SavingsPercent = full.Sub(cost).Div(full).Mul(hundred).Round(2)
	}
	return q
}
