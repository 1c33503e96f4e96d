package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokopos/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tieredProduct() (domain.Product, []domain.PriceRange) {
	product := domain.Product{
		ID:                      "prd-1",
		Name:                    "Noodle",
		SellingPrice:            d("1.20"),
		CostPrice:               d("0.60"),
		WholesalePrice:          decimal.NewNullDecimal(d("0.90")),
		HasQuantityBasedPricing: true,
	}
	ranges := []domain.PriceRange{
		{ID: "b", ProductID: "prd-1", MinQuantity: 11, MaxQuantity: 50, Price: d("0.80")},
		{ID: "a", ProductID: "prd-1", MinQuantity: 1, MaxQuantity: 10, Price: d("1.00")},
	}
	return product, ranges
}

func TestResolveUnitPriceTiers(t *testing.T) {
	product, ranges := tieredProduct()
	settings := domain.Settings{WholesaleModeEnabled: false}

	tests := []struct {
		name   string
		qty    int
		want   string
		total  string
		source Source
	}{
		{name: "lower tier", qty: 5, want: "1.00", total: "5.00", source: SourceTier},
		{name: "lower bound inclusive", qty: 1, want: "1.00", total: "1.00", source: SourceTier},
		{name: "upper bound inclusive", qty: 50, want: "0.80", total: "40.00", source: SourceTier},
		{name: "whole quantity at matched tier", qty: 15, want: "0.80", total: "12.00", source: SourceTier},
		{name: "no tier falls back", qty: 100, want: "1.20", total: "120.00", source: SourceSelling},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			quote := Resolve(product, ranges, tc.qty, false, settings)
			assert.True(t, d(tc.want).Equal(quote.UnitPrice), "unit price = %s", quote.UnitPrice)
			assert.Equal(t, tc.source, quote.Source)
			assert.True(t, d(tc.total).Equal(quote.Total), "total = %s", quote.Total)
		})
	}
}

func TestResolveUnitPriceWholesale(t *testing.T) {
	product, ranges := tieredProduct()

	on := domain.Settings{WholesaleModeEnabled: true}
	off := domain.Settings{WholesaleModeEnabled: false}

	got := ResolveUnitPrice(product, ranges, 5, true, on)
	assert.True(t, d("0.90").Equal(got), "wholesale should win over tiers, got %s", got)

	got = ResolveUnitPrice(product, ranges, 5, true, off)
	assert.True(t, d("1.00").Equal(got), "wholesale mode off must ignore the flag, got %s", got)

	got = ResolveUnitPrice(product, ranges, 5, false, on)
	assert.True(t, d("1.00").Equal(got), "retail line must not get wholesale, got %s", got)

	product.WholesalePrice = decimal.NullDecimal{}
	got = ResolveUnitPrice(product, ranges, 5, true, on)
	assert.True(t, d("1.00").Equal(got), "missing wholesale price falls through to tiers, got %s", got)
}

func TestResolveIgnoresTiersWhenFlagOff(t *testing.T) {
	product, ranges := tieredProduct()
	product.HasQuantityBasedPricing = false

	quote := Resolve(product, ranges, 5, false, domain.Settings{})
	assert.Equal(t, SourceSelling, quote.Source)
	assert.True(t, d("1.20").Equal(quote.UnitPrice))
	assert.Nil(t, quote.Tier)
}

func TestResolveWithoutTiersUsesSellingPrice(t *testing.T) {
	product, _ := tieredProduct()
	quote := Resolve(product, nil, 3, false, domain.Settings{})
	assert.Equal(t, SourceSelling, quote.Source)
	assert.True(t, d("3.60").Equal(quote.Total))
}

func TestMatchTierOverlapOrdering(t *testing.T) {
	ranges := []domain.PriceRange{
		{ID: "z", MinQuantity: 5, MaxQuantity: 20, Price: d("3")},
		{ID: "y", MinQuantity: 1, MaxQuantity: 30, Price: d("4")},
		{ID: "x", MinQuantity: 1, MaxQuantity: 10, Price: d("5")},
		{ID: "w", MinQuantity: 1, MaxQuantity: 10, Price: d("6")},
	}

	tier, ok := MatchTier(ranges, 7)
	require.True(t, ok)
	assert.Equal(t, "w", tier.ID)

	tier, ok = MatchTier(ranges, 25)
	require.True(t, ok)
	assert.Equal(t, "y", tier.ID)

	_, ok = MatchTier(ranges, 31)
	assert.False(t, ok)

	_, ok = MatchTier(ranges, 0)
	assert.False(t, ok)

	assert.Equal(t, "z", ranges[0].ID, "input slice must not be reordered")
}

func TestValidateTiers(t *testing.T) {
	assert.True(t, ValidateTiers(nil))
	assert.True(t, ValidateTiers([]domain.PriceRangeInput{
		{MinQuantity: 1, MaxQuantity: 10, Price: d("1")},
		{MinQuantity: 5, MaxQuantity: 5, Price: d("0")},
	}))
	assert.False(t, ValidateTiers([]domain.PriceRangeInput{{MinQuantity: 0, MaxQuantity: 10, Price: d("1")}}))
	assert.False(t, ValidateTiers([]domain.PriceRangeInput{{MinQuantity: 5, MaxQuantity: 4, Price: d("1")}}))
	assert.False(t, ValidateTiers([]domain.PriceRangeInput{{MinQuantity: 1, MaxQuantity: 4, Price: d("-1")}}))
}
