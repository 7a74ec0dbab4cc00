// Package normalize merges extracted orders with resolved identifiers into
// canonical orders, applying each source's defaulting and date policy.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
	"github.com/joseph-ayodele/order-transformer/internal/resolve"
)

// Flags attached to canonical orders.
const (
	FlagCustomerDefaulted   = "customer_defaulted"
	FlagCustomerUnmapped    = "customer_unmapped"
	FlagStoreDefaulted      = "store_defaulted"
	FlagStoreUnmapped       = "store_unmapped"
	FlagOrderDateMissing    = "order_date_missing"
	FlagShipDateOffset      = "ship_date_offset"
	FlagDiscountUnspecified = "discount_unspecified"
	FlagItemsUnresolved     = "items_unresolved"
)

const DefaultShipOffsetDays = 7

// Resolver is the part of resolve.Resolver the normalizer needs.
type Resolver interface {
	Resolve(ctx context.Context, source constants.Source, candidates []constants.KeyType, raw string) (resolve.Result, error)
	ResolveItem(ctx context.Context, source constants.Source, candidates []constants.KeyType, li entity.RawLineItem) (resolve.Result, error)
}

type Normalizer struct {
	layouts        *layout.Set
	shipOffsetDays int
	logger         *slog.Logger
}

type Option func(*Normalizer)

// WithShipOffsetDays sets the days added to the order date when no ship date was extracted.
func WithShipOffsetDays(days int) Option {
	return func(n *Normalizer) { n.shipOffsetDays = days }
}

func New(layouts *layout.Set, logger *slog.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{layouts: layouts, shipOffsetDays: DefaultShipOffsetDays, logger: logger}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize builds the canonical order for raw. The order is rejected whole when
// its number is empty or when no line item resolved.
func (n *Normalizer) Normalize(ctx context.Context, r Resolver, source constants.Source, document string, raw entity.RawOrder) (entity.CanonicalOrder, error) {
	h := raw.Header
	number := strings.TrimSpace(h.OrderNumber)
	if number == "" {
		return entity.CanonicalOrder{}, common.NewMissingRequiredFieldError(layout.FieldOrderNumber, constants.StageNormalize, h.Attempts)
	}

	var policy layout.Policy
	itemKeys := constants.ItemKeyTypes
	if l, ok := n.layouts.For(source); ok {
		policy = l.Policy
		itemKeys = l.ItemKeyTypes()
	}

	o := entity.CanonicalOrder{
		OrderNumber:   number,
		Source:        source,
		Document:      document,
		RawCustomerID: h.RawCustomerID,
		RawStoreID:    h.RawStoreID,
		Confidence:    h.Confidence,
	}

	var err error
	o.ResolvedCustomerID, err = n.party(ctx, r, &o, source, constants.KeyCustomerID, h.RawCustomerID, policy.CustomerDefault, FlagCustomerDefaulted, FlagCustomerUnmapped)
	if err != nil {
		return entity.CanonicalOrder{}, err
	}
	o.ResolvedStoreID, err = n.party(ctx, r, &o, source, constants.KeyStoreID, h.RawStoreID, policy.StoreDefault, FlagStoreDefaulted, FlagStoreUnmapped)
	if err != nil {
		return entity.CanonicalOrder{}, err
	}

	n.dates(&o, h, policy)

	o.LineItems = make([]entity.CanonicalLineItem, 0, len(raw.Items))
	for _, li := range raw.Items {
		if err := ctx.Err(); err != nil {
			return entity.CanonicalOrder{}, err
		}
		res, err := r.ResolveItem(ctx, source, itemKeys, li)
		if err != nil {
			return entity.CanonicalOrder{}, err
		}
		item := lineItem(li, res)
		if li.Discount != nil && li.Discount.Unspecified {
			o.Flags = append(o.Flags, fmt.Sprintf("%s:%d", FlagDiscountUnspecified, li.LineNumber))
		}
		o.LineItems = append(o.LineItems, item)
	}

	unresolvedCount := o.UnresolvedCount()
	if len(o.LineItems) > 0 && unresolvedCount == len(o.LineItems) {
		n.logger.Warn("normalize.rejected", "document", document, "order_number", number, "unresolved", unresolvedCount)
		return entity.CanonicalOrder{}, common.NewUnresolvedIdentifierError(number, unresolvedCount)
	}
	if unresolvedCount > 0 {
		o.Flags = append(o.Flags, fmt.Sprintf("%s:%d", FlagItemsUnresolved, unresolvedCount))
	}
	return o, nil
}

// party resolves a customer or store identifier. Unmapped values keep the raw
// text; a missing value takes the source default.
func (n *Normalizer) party(ctx context.Context, r Resolver, o *entity.CanonicalOrder, source constants.Source, kt constants.KeyType, raw, def, flagDefault, flagUnmapped string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if def != "" {
			o.Flags = append(o.Flags, flagDefault)
		}
		return def, nil
	}
	res, err := r.Resolve(ctx, source, []constants.KeyType{kt}, raw)
	if err != nil {
		return "", err
	}
	if res.Unresolved {
		o.Flags = append(o.Flags, flagUnmapped)
		return raw, nil
	}
	return res.Value, nil
}

func firstDate(h entity.RawOrderHeader, roles []entity.DateRole) (time.Time, bool) {
	for _, role := range roles {
		if t, ok := h.Date(role); ok && !t.IsZero() {
			return t, true
		}
	}
	return time.Time{}, false
}

// dates applies the date policy. A missing order date never falls back to the
// clock: the ship date stands in, or both stay zero and the order is flagged.
func (n *Normalizer) dates(o *entity.CanonicalOrder, h entity.RawOrderHeader, p layout.Policy) {
	orderRoles := p.OrderDate
	if len(orderRoles) == 0 {
		orderRoles = []entity.DateRole{entity.DateOrder}
	}
	shipRoles := p.ShipDate
	if len(shipRoles) == 0 {
		shipRoles = []entity.DateRole{entity.DateRequestedDelivery, entity.DateShip}
	}
	offset := n.shipOffsetDays
	if p.ShipOffsetDays != nil {
		offset = *p.ShipOffsetDays
	}

	orderDate, hasOrder := firstDate(h, orderRoles)
	shipDate, hasShip := firstDate(h, shipRoles)
	switch {
	case hasOrder && !hasShip:
		shipDate = orderDate.AddDate(0, 0, offset)
		o.Flags = append(o.Flags, FlagShipDateOffset)
	case !hasOrder && hasShip:
		orderDate = shipDate
		o.Flags = append(o.Flags, FlagOrderDateMissing)
	case !hasOrder && !hasShip:
		o.Flags = append(o.Flags, FlagOrderDateMissing)
	}
	o.OrderDate = orderDate
	o.ShipDate = shipDate
	if c, ok := h.Date(entity.DateCancel); ok {
		o.CancelDate = &c
	}
}

// lineItem nets any discount into the unit price and computes line_total once.
func lineItem(li entity.RawLineItem, res resolve.Result) entity.CanonicalLineItem {
	original := li.Quantity.Mul(li.UnitCost)
	unitPrice := li.UnitCost
	discount := decimal.Zero
	basis := ""
	if d := li.Discount; d != nil && !d.Unspecified && d.Amount.IsPositive() {
		discount = d.Amount
		basis = d.Basis
		unitPrice = original.Sub(discount).DivRound(li.Quantity, 4)
	}
	item := entity.CanonicalLineItem{
		LineNumber:     li.LineNumber,
		ResolvedItemID: res.Value,
		RawItemID:      li.RawItemID,
		Unresolved:     res.Unresolved,
		Description:    li.Description,
		Quantity:       li.Quantity,
		UnitPrice:      unitPrice,
		LineTotal:      li.Quantity.Mul(unitPrice),
		DiscountAmount: discount,
		DiscountBasis:  basis,
		OriginalTotal:  original,
	}
	if !res.Unresolved {
		item.MatchedKeyType = res.KeyType
	}
	return item
}
