package extract

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

// itemCells is one candidate row, before acceptance.
type itemCells struct {
	item            string
	upc             string
	description     string
	quantity        string
	unitCost        string
	total           string
	discountPercent string
	discountFlat    string
}

// buildLineItem applies the acceptance rule: a non-empty identifier and a
// parseable quantity above zero. The returned reason explains a rejection.
func buildLineItem(c itemCells) (entity.RawLineItem, bool, string) {
	item := CleanCode(c.item)
	if item == "" {
		return entity.RawLineItem{}, false, "no item identifier"
	}
	qty, err := ParseDecimal(c.quantity)
	if err != nil {
		return entity.RawLineItem{}, false, "quantity: " + err.Error()
	}
	if !qty.IsPositive() {
		return entity.RawLineItem{}, false, "quantity " + qty.String() + " is not positive"
	}

	cost := decimal.Zero
	if v, err := ParseDecimal(c.unitCost); err == nil {
		cost = v
	} else if total, err := ParseDecimal(c.total); err == nil {
		cost = total.DivRound(qty, 4)
	}
	if cost.IsNegative() {
		return entity.RawLineItem{}, false, "negative unit cost"
	}

	li := entity.RawLineItem{
		RawItemID:   item,
		Description: c.description,
		Quantity:    qty,
		UnitCost:    cost,
	}
	if upc := CleanCode(c.upc); upc != "" && upc != item {
		li.AltIDs = map[constants.KeyType]string{constants.KeyUPC: upc}
	}

	pct := optionalDecimal(c.discountPercent)
	flat := optionalDecimal(c.discountFlat)
	if pct != nil || flat != nil {
		li.Discount = OptimalDiscount(qty, cost, pct, flat, "")
		if li.Discount.Unspecified {
			li.Discount = nil
		}
	}
	return li, true, ""
}

func optionalDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := ParseDecimal(s)
	if err != nil {
		return nil
	}
	return &d
}
