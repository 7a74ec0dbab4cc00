package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestOptimalDiscount(t *testing.T) {
	tests := []struct {
		name      string
		qty, cost string
		pct, flat *decimal.Decimal
		basis     string
		amount    string
		final     string
	}{
		{name: "percent only", qty: "1", cost: "5", pct: dp("10"), basis: DiscountBasisPercent, amount: "0.5", final: "4.5"},
		{name: "flat only", qty: "2", cost: "10", flat: dp("3"), basis: DiscountBasisFlat, amount: "3", final: "17"},
		{name: "flat beats percent", qty: "2", cost: "10", pct: dp("10"), flat: dp("3"), basis: DiscountBasisFlat, amount: "3", final: "17"},
		{name: "percent beats flat", qty: "10", cost: "10", pct: dp("10"), flat: dp("3"), basis: DiscountBasisPercent, amount: "10", final: "90"},
		{name: "tie prefers percent", qty: "1", cost: "30", pct: dp("10"), flat: dp("3"), basis: DiscountBasisPercent, amount: "3", final: "27"},
		{name: "zero values ignored", qty: "1", cost: "8", pct: dp("0"), flat: dp("2"), basis: DiscountBasisFlat, amount: "2", final: "6"},
		{name: "clamped at original", qty: "1", cost: "4", flat: dp("9"), basis: DiscountBasisFlat, amount: "4", final: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := OptimalDiscount(decimal.RequireFromString(tt.qty), decimal.RequireFromString(tt.cost), tt.pct, tt.flat, "promo")
			assert.False(t, d.Unspecified)
			assert.Equal(t, tt.basis, d.Basis)
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(d.Amount), "amount %s", d.Amount)
			assert.True(t, decimal.RequireFromString(tt.final).Equal(d.FinalTotal), "final %s", d.FinalTotal)
			assert.Equal(t, "promo", d.Description)
		})
	}
}

func TestOptimalDiscountUnspecified(t *testing.T) {
	d := OptimalDiscount(decimal.NewFromInt(3), decimal.NewFromInt(2), nil, dp("0"), "")
	assert.True(t, d.Unspecified)
	assert.Equal(t, DiscountBasisNone, d.Basis)
	assert.True(t, d.Amount.IsZero())
	assert.True(t, decimal.NewFromInt(6).Equal(d.FinalTotal))
}
