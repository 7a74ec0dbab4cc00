package extract

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

const (
	DiscountBasisPercent = "percent"
	DiscountBasisFlat    = "flat"
	DiscountBasisNone    = "none"
)

var hundred = decimal.NewFromInt(100)

// OptimalDiscount computes the percentage-derived and flat discounts for a line
// and applies whichever lowers the total more. Equal candidates prefer the
// percentage. With neither present the adjustment is zero and marked Unspecified.
func OptimalDiscount(quantity, unitCost decimal.Decimal, percent, flat *decimal.Decimal, description string) *entity.Discount {
	original := quantity.Mul(unitCost)
	d := &entity.Discount{
		Percent:       percent,
		Flat:          flat,
		OriginalTotal: original,
		FinalTotal:    original,
		Basis:         DiscountBasisNone,
		Amount:        decimal.Zero,
		Description:   description,
	}

	hasPct := percent != nil && percent.IsPositive()
	hasFlat := flat != nil && flat.IsPositive()
	if !hasPct && !hasFlat {
		d.Unspecified = true
		return d
	}

	var pctAmount, flatAmount decimal.Decimal
	if hasPct {
		pctAmount = original.Mul(*percent).Div(hundred)
	}
	if hasFlat {
		flatAmount = *flat
	}

	if hasPct && (!hasFlat || pctAmount.GreaterThanOrEqual(flatAmount)) {
		d.Basis = DiscountBasisPercent
		d.Amount = pctAmount
	} else {
		d.Basis = DiscountBasisFlat
		d.Amount = flatAmount
	}
	if d.Amount.GreaterThan(original) {
		d.Amount = original
	}
	d.FinalTotal = original.Sub(d.Amount)
	return d
}
