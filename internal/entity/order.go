package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
)

// DateRole names a labeled date found on a document.
type DateRole string

const (
	DateOrder             DateRole = "order"
	DateRequestedDelivery DateRole = "requested_delivery"
	DateShip              DateRole = "ship"
	DatePickup            DateRole = "pickup"
	DateETA               DateRole = "eta"
	DateCancel            DateRole = "cancel"
)

// RawOrderHeader holds header fields exactly as extracted.
type RawOrderHeader struct {
	OrderNumber       string                          `json:"order_number"`
	OrderDate         *time.Time                      `json:"order_date,omitempty"`
	RequestedShipDate *time.Time                      `json:"requested_ship_date,omitempty"`
	Dates             map[DateRole]time.Time          `json:"dates,omitempty"`
	RawCustomerID     string                          `json:"raw_customer_id"`
	RawStoreID        string                          `json:"raw_store_id"`
	Confidence        constants.Confidence            `json:"extraction_confidence"`
	FieldConfidence   map[string]constants.Confidence `json:"field_confidence,omitempty"`
	Attempts          []common.StrategyAttempt        `json:"attempts,omitempty"`
}

// Date returns the labeled date for role, if extracted.
func (h *RawOrderHeader) Date(role DateRole) (time.Time, bool) {
	switch role {
	case DateOrder:
		if h.OrderDate != nil {
			return *h.OrderDate, true
		}
	case DateRequestedDelivery:
		if h.RequestedShipDate != nil {
			return *h.RequestedShipDate, true
		}
	}
	t, ok := h.Dates[role]
	return t, ok
}

// SetDate records a labeled date, filling the dedicated header fields for order and requested delivery.
func (h *RawOrderHeader) SetDate(role DateRole, t time.Time) {
	switch role {
	case DateOrder:
		h.OrderDate = &t
	case DateRequestedDelivery:
		h.RequestedShipDate = &t
	}
	if h.Dates == nil {
		h.Dates = make(map[DateRole]time.Time)
	}
	h.Dates[role] = t
}

// Discount is the audit trail of an adjustment record applied to one line.
type Discount struct {
	Percent       *decimal.Decimal `json:"percent,omitempty"`
	Flat          *decimal.Decimal `json:"flat,omitempty"`
	Basis         string           `json:"basis"`
	Amount        decimal.Decimal  `json:"amount"`
	OriginalTotal decimal.Decimal  `json:"original_total"`
	FinalTotal    decimal.Decimal  `json:"final_total"`
	Description   string           `json:"description,omitempty"`
	Unspecified   bool             `json:"unspecified,omitempty"`
}

// RawLineItem is one accepted row of a document's item table.
type RawLineItem struct {
	LineNumber  int                          `json:"line_number"`
	RawItemID   string                       `json:"raw_item_id"`
	AltIDs      map[constants.KeyType]string `json:"alt_ids,omitempty"`
	Description string                       `json:"description"`
	Quantity    decimal.Decimal              `json:"quantity"`
	UnitCost    decimal.Decimal              `json:"unit_cost"`
	Discount    *Discount                    `json:"discount,omitempty"`
}

// RawOrder is a header and the line items it owns.
type RawOrder struct {
	Header RawOrderHeader `json:"header"`
	Items  []RawLineItem  `json:"items"`
}

// CanonicalLineItem is an emitted line. LineTotal is set once by the normalizer.
type CanonicalLineItem struct {
	LineNumber     int               `json:"line_number"`
	ResolvedItemID string            `json:"resolved_item_id"`
	RawItemID      string            `json:"raw_item_id"`
	MatchedKeyType constants.KeyType `json:"matched_key_type,omitempty"`
	Unresolved     bool              `json:"unresolved,omitempty"`
	Description    string            `json:"description"`
	Quantity       decimal.Decimal   `json:"quantity"`
	UnitPrice      decimal.Decimal   `json:"unit_price"`
	LineTotal      decimal.Decimal   `json:"line_total"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	DiscountBasis  string            `json:"discount_basis,omitempty"`
	OriginalTotal  decimal.Decimal   `json:"original_total"`
}

// CanonicalOrder is emitted whole or not at all.
type CanonicalOrder struct {
	OrderNumber        string               `json:"order_number"`
	Source             constants.Source     `json:"source"`
	Document           string               `json:"document"`
	OrderDate          time.Time            `json:"order_date"`
	ShipDate           time.Time            `json:"ship_date"`
	CancelDate         *time.Time           `json:"cancel_date,omitempty"`
	ResolvedCustomerID string               `json:"resolved_customer_id"`
	ResolvedStoreID    string               `json:"resolved_store_id"`
	RawCustomerID      string               `json:"raw_customer_id"`
	RawStoreID         string               `json:"raw_store_id"`
	Confidence         constants.Confidence `json:"extraction_confidence"`
	LineItems          []CanonicalLineItem  `json:"line_items"`
	Flags              []string             `json:"flags,omitempty"`
}

// UnresolvedCount counts line items carrying the sentinel.
func (o *CanonicalOrder) UnresolvedCount() int {
	n := 0
	for _, li := range o.LineItems {
		if li.Unresolved {
			n++
		}
	}
	return n
}

// Total sums line totals.
func (o *CanonicalOrder) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range o.LineItems {
		sum = sum.Add(li.LineTotal)
	}
	return sum
}
