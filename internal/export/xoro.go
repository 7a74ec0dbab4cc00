// Package export projects canonical orders onto the Xoro sales order import sheet.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

// Columns is the fixed import layout, one row per line item.
var Columns = []string{
	"ImportError", "ThirdPartyRefNo", "ThirdPartySource", "ThirdPartyIconUrl",
	"ThirdPartyDisplayName", "SaleStoreName", "StoreName", "CurrencyCode",
	"CustomerName", "CustomerFirstName", "CustomerLastName", "CustomerMainPhone",
	"CustomerEmailMain", "CustomerPO", "CustomerId", "CustomerAccountNumber",
	"OrderDate", "DateToBeShipped", "LastDateToBeShipped", "DateToBeCancelled",
	"OrderClassCode", "OrderClassName", "OrderTypeCode", "OrderTypeName",
	"ExchangeRate", "Memo", "PaymentTermsName", "PaymentTermsType",
	"DepositRequiredTypeName", "DepositRequiredAmount", "ItemNumber",
	"ItemDescription", "UnitPrice", "Qty", "LineTotal", "DiscountAmount",
	"DiscountPercent", "TaxAmount", "TaxPercent",
}

// numericColumns are written as numbers in workbooks.
var numericColumns = map[string]bool{
	"ExchangeRate": true, "DepositRequiredAmount": true, "UnitPrice": true, "Qty": true,
	"LineTotal": true, "DiscountAmount": true, "DiscountPercent": true, "TaxAmount": true, "TaxPercent": true,
}

const (
	DateLayout       = "2006-01-02"
	CurrencyCode     = "USD"
	OrderClassCode   = "STANDARD"
	OrderClassName   = "Standard Order"
	OrderTypeCode    = "SALE"
	OrderTypeName    = "Sales Order"
	PaymentTermsName = "Net 30"
	PaymentTermsType = "Net"
)

// Row is one import line keyed by column name.
type Row map[string]string

// Values returns the row in column order.
func (r Row) Values() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = r[c]
	}
	return out
}

var hundred = decimal.NewFromInt(100)

// Rows projects orders in order, one row per line item. Validation problems
// are written to ImportError rather than dropping the line.
func Rows(orders []entity.CanonicalOrder) []Row {
	var out []Row
	for i := range orders {
		o := &orders[i]
		for _, li := range o.LineItems {
			r := orderRow(o)
			r["ItemNumber"] = li.ResolvedItemID
			r["ItemDescription"] = li.Description
			r["UnitPrice"] = li.UnitPrice.String()
			r["Qty"] = li.Quantity.String()
			r["LineTotal"] = li.LineTotal.String()
			r["DiscountAmount"] = li.DiscountAmount.String()
			r["DiscountPercent"] = discountPercent(li).String()
			r["TaxAmount"] = "0"
			r["TaxPercent"] = "0"

			problems := Validate(r)
			if li.Unresolved {
				problems = append(problems, fmt.Sprintf("Unmapped item: %s", li.RawItemID))
			}
			r["ImportError"] = strings.Join(problems, "; ")
			out = append(out, r)
		}
	}
	return out
}

func orderRow(o *entity.CanonicalOrder) Row {
	source := o.Source.DisplayName()
	store := o.ResolvedStoreID
	if store == "" {
		store = o.ResolvedCustomerID
	}
	first, last := splitName(o.ResolvedCustomerID)
	r := Row{
		"ThirdPartyRefNo":       o.OrderNumber,
		"ThirdPartySource":      source,
		"ThirdPartyDisplayName": source,
		"SaleStoreName":         store,
		"StoreName":             store,
		"CurrencyCode":          CurrencyCode,
		"CustomerName":          o.ResolvedCustomerID,
		"CustomerFirstName":     first,
		"CustomerLastName":      last,
		"CustomerPO":            o.OrderNumber,
		"OrderDate":             formatDate(o.OrderDate),
		"DateToBeShipped":       formatDate(o.ShipDate),
		"LastDateToBeShipped":   formatDate(o.ShipDate),
		"OrderClassCode":        OrderClassCode,
		"OrderClassName":        OrderClassName,
		"OrderTypeCode":         OrderTypeCode,
		"OrderTypeName":         OrderTypeName,
		"ExchangeRate":          "1",
		"Memo":                  fmt.Sprintf("Imported from %s - File: %s", source, o.Document),
		"PaymentTermsName":      PaymentTermsName,
		"PaymentTermsType":      PaymentTermsType,
		"DepositRequiredAmount": "0",
	}
	if o.CancelDate != nil {
		r["DateToBeCancelled"] = formatDate(*o.CancelDate)
	}
	return r
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// discountPercent is the applied percentage for percent-basis discounts, else zero.
func discountPercent(li entity.CanonicalLineItem) decimal.Decimal {
	if li.DiscountBasis != "percent" || !li.OriginalTotal.IsPositive() {
		return decimal.Zero
	}
	return li.DiscountAmount.Mul(hundred).DivRound(li.OriginalTotal, 2)
}

// splitName treats the first word as the first name and the rest as the last name.
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// Validate reports missing required fields and malformed numbers or dates.
func Validate(r Row) []string {
	var problems []string
	for _, f := range []string{"CustomerName", "ItemNumber", "Qty", "UnitPrice"} {
		if strings.TrimSpace(r[f]) == "" {
			problems = append(problems, "Missing required field: "+f)
		}
	}
	for _, f := range []string{"UnitPrice", "Qty", "LineTotal", "ExchangeRate"} {
		if v := r[f]; v != "" {
			if _, err := decimal.NewFromString(v); err != nil {
				problems = append(problems, fmt.Sprintf("Invalid numeric value for %s: %s", f, v))
			}
		}
	}
	for _, f := range []string{"OrderDate", "DateToBeShipped"} {
		if v := r[f]; v != "" {
			if _, err := time.Parse(DateLayout, v); err != nil {
				problems = append(problems, fmt.Sprintf("Invalid date format for %s: %s", f, v))
			}
		}
	}
	return problems
}
