package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type PurchaseType string

const (
	PurchaseSoloSingletime PurchaseType = "solo_singletime"
	PurchaseSubscription   PurchaseType = "subscription"
)

// GroupQuantityThreshold: satu order line dihitung group purchase kalau qty > threshold.
// Nilai bisnisnya belum dikonfirmasi; semua call site wajib lewat IsGroupQuantity.
const GroupQuantityThreshold = 10

func IsGroupQuantity(qty int) bool { return qty > GroupQuantityThreshold }

func ParsePurchaseType(s string) (PurchaseType, error) {
	switch PurchaseType(s) {
	case "":
		return PurchaseSoloSingletime, nil
	case PurchaseSoloSingletime, PurchaseSubscription:
		return PurchaseType(s), nil
	}
	return "", fmt.Errorf("unknown purchase type: %q", s)
}

// DiscountRule maps (purchase type, group flag) ke satu persentase [0,100].
type DiscountRule struct {
	PurchaseType PurchaseType
	Group        bool
	Percent      decimal.Decimal
}

// DiscountConfig is the ordered rule set attached to one inventory lot.
// Immutable once attached; resolution takes the first exact match.
type DiscountConfig []DiscountRule

var ErrBadDiscountConfig = errors.New("malformed discount config")

var typeCodes = map[PurchaseType]string{
	PurchaseSoloSingletime: "s",
	PurchaseSubscription:   "b",
}

var codeTypes = map[string]PurchaseType{
	"s": PurchaseSoloSingletime,
	"b": PurchaseSubscription,
}

// Encode serializes the config to the compact column format, e.g. "s=5,b=10,sg=12.5".
// Round-trip with Decode is lossless, urutan rule dipertahankan.
func (c DiscountConfig) Encode() string {
	if len(c) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c))
	for _, r := range c {
		code := typeCodes[r.PurchaseType]
		if r.Group {
			code += "g"
		}
		parts = append(parts, code+"="+r.Percent.String())
	}
	return strings.Join(parts, ",")
}

func DecodeDiscountConfig(s string) (DiscountConfig, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	cfg := make(DiscountConfig, 0, len(parts))
	for _, part := range parts {
		code, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadDiscountConfig, part)
		}
		group := strings.HasSuffix(code, "g")
		code = strings.TrimSuffix(code, "g")
		pt, ok := codeTypes[code]
		if !ok {
			return nil, fmt.Errorf("%w: unknown tier code %q", ErrBadDiscountConfig, part)
		}
		pct, err := decimal.NewFromString(val)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadDiscountConfig, part)
		}
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("%w: percent out of range in %q", ErrBadDiscountConfig, part)
		}
		cfg = append(cfg, DiscountRule{PurchaseType: pt, Group: group, Percent: pct})
	}
	return cfg, nil
}

// Resolve returns the discount percentage for one lot. Empty purchase type
// defaults to solo_singletime; no matching rule resolves to zero.
// Persentase disimpan apa adanya, pembulatan hanya saat hitung harga.
func (c DiscountConfig) Resolve(pt PurchaseType, group bool) decimal.Decimal {
	if pt == "" {
		pt = PurchaseSoloSingletime
	}
	for _, r := range c {
		if r.PurchaseType == pt && r.Group == group {
			return r.Percent
		}
	}
	return decimal.Zero
}
