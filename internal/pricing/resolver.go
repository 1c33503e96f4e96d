// Package pricing decides the unit price of a sale line. It is pure: callers
// load the product, its tiers and the shop settings and pass them in.
package pricing

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"tokopos/internal/domain"
)

type Source string

const (
	SourceWholesale Source = "wholesale"
	SourceTier      Source = "tier"
	SourceSelling   Source = "selling"
)

type Quote struct {
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Source    Source
	// Tier is set when Source is SourceTier.
	Tier *domain.PriceRange
}

// ResolveUnitPrice returns the per-unit price for qty units of product.
// Wholesale wins when the shop has wholesale mode on, the line asks for it and
// the product has a wholesale price. Otherwise the first tier containing qty is
// used, and the selling price is the fallback.
func ResolveUnitPrice(product domain.Product, ranges []domain.PriceRange, qty int, isWholesale bool, settings domain.Settings) decimal.Decimal {
	return Resolve(product, ranges, qty, isWholesale, settings).UnitPrice
}

func Resolve(product domain.Product, ranges []domain.PriceRange, qty int, isWholesale bool, settings domain.Settings) Quote {
	quote := Quote{UnitPrice: product.SellingPrice, Source: SourceSelling}

	switch {
	case settings.WholesaleModeEnabled && isWholesale && product.WholesalePrice.Valid:
		quote.UnitPrice = product.WholesalePrice.Decimal
		quote.Source = SourceWholesale
	case product.HasQuantityBasedPricing:
		if tier, ok := MatchTier(ranges, qty); ok {
			quote.UnitPrice = tier.Price
			quote.Source = SourceTier
			quote.Tier = &tier
		}
	}

	quote.Total = quote.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	return quote
}

// MatchTier picks the tier for qty. Overlapping tiers are allowed; the one with
// the lowest MinQuantity wins, then the lowest MaxQuantity, then the lowest ID.
func MatchTier(ranges []domain.PriceRange, qty int) (domain.PriceRange, bool) {
	if len(ranges) == 0 || qty < 1 {
		return domain.PriceRange{}, false
	}
	ordered := slices.Clone(ranges)
	slices.SortFunc(ordered, compareTiers)
	for _, r := range ordered {
		if r.Contains(qty) {
			return r, true
		}
	}
	return domain.PriceRange{}, false
}

func compareTiers(a, b domain.PriceRange) int {
	if c := cmp.Compare(a.MinQuantity, b.MinQuantity); c != 0 {
		return c
	}
	if c := cmp.Compare(a.MaxQuantity, b.MaxQuantity); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// ValidateTiers checks the shape of each tier on its own. Overlaps between
// tiers are not rejected.
func ValidateTiers(ranges []domain.PriceRangeInput) bool {
	for _, r := range ranges {
		if r.MinQuantity < 1 || r.MaxQuantity < r.MinQuantity || r.Price.IsNegative() {
			return false
		}
	}
	return true
}
