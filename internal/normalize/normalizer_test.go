package normalize

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/extract"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
	"github.com/joseph-ayodele/order-transformer/internal/resolve"
)

type mapLookup map[constants.KeyType]map[string]string

func (m mapLookup) ActiveMappings(_ context.Context, source constants.Source, keyTypes []constants.KeyType) ([]entity.MappingEntry, error) {
	var out []entity.MappingEntry
	id := int64(0)
	for _, kt := range keyTypes {
		for raw, canonical := range m[kt] {
			id++
			out = append(out, entity.MappingEntry{ID: id, Source: source, KeyType: kt, RawValue: raw, CanonicalValue: canonical, Priority: 100, Active: true})
		}
	}
	return out, nil
}

var mappings = mapLookup{
	constants.KeyVendorItem: {"ITEM-A": "XO-A", "ITEM-B": "XO-B"},
	constants.KeyCustomerID: {"0042": "Store 42"},
}

func newNormalizer(t *testing.T, opts ...Option) *Normalizer {
	t.Helper()
	set, err := layout.Default()
	require.NoError(t, err)
	return New(set, nil, opts...)
}

func newResolver() *resolve.Resolver {
	return resolve.New(mappings, resolve.NewCache(), nil)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }

func header(number string) entity.RawOrderHeader {
	h := entity.RawOrderHeader{OrderNumber: number, Confidence: constants.ConfidenceExact}
	h.SetDate(entity.DateOrder, date(2025, 1, 5))
	return h
}

func item(n int, id, qty, cost string) entity.RawLineItem {
	return entity.RawLineItem{LineNumber: n, RawItemID: id, Quantity: d(qty), UnitCost: d(cost)}
}

func TestNormalizeDiscountedOrder(t *testing.T) {
	b := item(2, "ITEM-B", "1", "5.00")
	pct := d("10")
	b.Discount = extract.OptimalDiscount(b.Quantity, b.UnitCost, &pct, nil, "")

	o, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceUNFI, "po.csv", entity.RawOrder{
		Header: header("PO1001"),
		Items:  []entity.RawLineItem{item(1, "ITEM-A", "2", "10.00"), b},
	})
	require.NoError(t, err)

	assert.Equal(t, "PO1001", o.OrderNumber)
	assert.Equal(t, date(2025, 1, 5), o.OrderDate)
	require.Len(t, o.LineItems, 2)

	a := o.LineItems[0]
	assert.Equal(t, "XO-A", a.ResolvedItemID)
	assert.Equal(t, constants.KeyVendorItem, a.MatchedKeyType)
	assert.True(t, d("20").Equal(a.LineTotal))

	bi := o.LineItems[1]
	assert.Equal(t, "XO-B", bi.ResolvedItemID)
	assert.True(t, d("4.50").Equal(bi.LineTotal), "got %s", bi.LineTotal)
	assert.True(t, d("4.50").Equal(bi.UnitPrice))
	assert.True(t, d("0.50").Equal(bi.DiscountAmount))
	assert.True(t, d("5").Equal(bi.OriginalTotal))
	assert.Equal(t, extract.DiscountBasisPercent, bi.DiscountBasis)

	assert.True(t, d("24.50").Equal(o.Total()))
}

func TestLineTotalIsQuantityTimesUnitPrice(t *testing.T) {
	li := item(1, "ITEM-A", "3", "1.00")
	flat := d("1")
	li.Discount = extract.OptimalDiscount(li.Quantity, li.UnitCost, nil, &flat, "")

	o, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceUNFI, "x.csv", entity.RawOrder{
		Header: header("PO2"),
		Items:  []entity.RawLineItem{li},
	})
	require.NoError(t, err)
	got := o.LineItems[0]
	assert.True(t, d("0.6667").Equal(got.UnitPrice))
	assert.True(t, got.Quantity.Mul(got.UnitPrice).Equal(got.LineTotal))
}

func TestNormalizeRejectsFullyUnresolvedOrder(t *testing.T) {
	_, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceUNFI, "x.csv", entity.RawOrder{
		Header: header("PO3"),
		Items:  []entity.RawLineItem{item(1, "NOPE-1", "1", "1"), item(2, "NOPE-2", "2", "1")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnresolvedIdentifier)
	f, ok := common.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, constants.StageNormalize, f.Stage)
}

func TestNormalizeKeepsPartiallyUnresolvedOrder(t *testing.T) {
	o, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceUNFI, "x.csv", entity.RawOrder{
		Header: header("PO4"),
		Items:  []entity.RawLineItem{item(1, "ITEM-A", "1", "1"), item(2, "NOPE", "1", "1"), item(3, "ITEM-B", "1", "1")},
	})
	require.NoError(t, err)
	require.Len(t, o.LineItems, 3)
	assert.Equal(t, 1, o.UnresolvedCount())

	sentinel := o.LineItems[1]
	assert.True(t, sentinel.Unresolved)
	assert.Equal(t, constants.Unresolved, sentinel.ResolvedItemID)
	assert.Equal(t, "NOPE", sentinel.RawItemID)
	assert.Empty(t, sentinel.MatchedKeyType)
	assert.Contains(t, o.Flags, FlagItemsUnresolved+":1")
}

func TestNormalizeRequiresOrderNumber(t *testing.T) {
	_, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceUNFI, "x.csv", entity.RawOrder{
		Header: header("  "),
		Items:  []entity.RawLineItem{item(1, "ITEM-A", "1", "1")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingRequiredField)
}

func TestNormalizeDatePolicies(t *testing.T) {
	items := []entity.RawLineItem{item(1, "ITEM-A", "1", "1")}

	t.Run("sps prefers requested delivery", func(t *testing.T) {
		h := header("PO5")
		h.SetDate(entity.DateShip, date(2025, 1, 20))
		h.SetDate(entity.DateRequestedDelivery, date(2025, 1, 12))
		o, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceKEHE, "k.csv", entity.RawOrder{Header: h, Items: items})
		require.NoError(t, err)
		assert.Equal(t, date(2025, 1, 12), o.ShipDate)
		assert.NotContains(t, o.Flags, FlagShipDateOffset)
	})

	t.Run("sps falls back to order date", func(t *testing.T) {
		o, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceKEHE, "k.csv", entity.RawOrder{Header: header("PO6"), Items: items})
		require.NoError(t, err)
		assert.Equal(t, date(2025, 1, 5), o.ShipDate)
	})

	t.Run("positional uses pickup", func(t *testing.T) {
		h := header("PO7")
		h.SetDate(entity.DateETA, date(2025, 1, 15))
		h.SetDate(entity.DatePickup, date(2025, 1, 9))
		o, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceUNFIEast, "e.pdf", entity.RawOrder{Header: h, Items: items})
		require.NoError(t, err)
		assert.Equal(t, date(2025, 1, 9), o.ShipDate)
	})

	t.Run("tabular offsets order date", func(t *testing.T) {
		o, err := newNormalizer(t, WithShipOffsetDays(3)).Normalize(context.Background(), newResolver(), constants.SourceTKMaxx, "t.csv", entity.RawOrder{Header: header("PO8"), Items: items})
		require.NoError(t, err)
		assert.Equal(t, date(2025, 1, 8), o.ShipDate)
		assert.Contains(t, o.Flags, FlagShipDateOffset)
	})

	t.Run("missing order date uses ship date", func(t *testing.T) {
		h := entity.RawOrderHeader{OrderNumber: "PO9"}
		h.SetDate(entity.DateRequestedDelivery, date(2025, 2, 1))
		o, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceUNFI, "t.csv", entity.RawOrder{Header: h, Items: items})
		require.NoError(t, err)
		assert.Equal(t, date(2025, 2, 1), o.OrderDate)
		assert.Contains(t, o.Flags, FlagOrderDateMissing)
	})

	t.Run("no dates stay zero", func(t *testing.T) {
		o, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceUNFI, "t.csv", entity.RawOrder{Header: entity.RawOrderHeader{OrderNumber: "PO10"}, Items: items})
		require.NoError(t, err)
		assert.True(t, o.OrderDate.IsZero())
		assert.True(t, o.ShipDate.IsZero())
	})
}

func TestNormalizeCustomerAndStore(t *testing.T) {
	items := []entity.RawLineItem{item(1, "ITEM-A", "1", "1")}
	n := newNormalizer(t)

	o, err := n.Normalize(context.Background(), newResolver(), constants.SourceKEHE, "k.csv", entity.RawOrder{Header: header("PO11"), Items: items})
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultCustomerIDI, o.ResolvedCustomerID)
	assert.Contains(t, o.Flags, FlagCustomerDefaulted)

	h := header("PO12")
	h.RawCustomerID = "0042"
	o, err = n.Normalize(context.Background(), newResolver(), constants.SourceKEHE, "k.csv", entity.RawOrder{Header: h, Items: items})
	require.NoError(t, err)
	assert.Equal(t, "Store 42", o.ResolvedCustomerID)
	assert.Equal(t, "0042", o.RawCustomerID)

	h = header("PO13")
	h.RawCustomerID = "UNFI EAST - SARASOTA"
	o, err = n.Normalize(context.Background(), newResolver(), constants.SourceUNFIEast, "e.pdf", entity.RawOrder{Header: h, Items: items})
	require.NoError(t, err)
	assert.Equal(t, "UNFI EAST - SARASOTA", o.ResolvedCustomerID)
	assert.Contains(t, o.Flags, FlagCustomerUnmapped)

	o, err = n.Normalize(context.Background(), newResolver(), constants.SourceUNFIWest, "w.html", entity.RawOrder{Header: header("PO14"), Items: items})
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultStoreKL, o.ResolvedStoreID)
	assert.Contains(t, o.Flags, FlagStoreDefaulted)
}

func TestNormalizeFlagsUnspecifiedDiscount(t *testing.T) {
	li := item(1, "ITEM-A", "2", "3")
	li.Discount = extract.OptimalDiscount(li.Quantity, li.UnitCost, nil, nil, "blank record")

	o, err := newNormalizer(t).Normalize(context.Background(), newResolver(), constants.SourceUNFI, "x.csv", entity.RawOrder{Header: header("PO15"), Items: []entity.RawLineItem{li}})
	require.NoError(t, err)
	assert.True(t, d("6").Equal(o.LineItems[0].LineTotal))
	assert.True(t, o.LineItems[0].DiscountAmount.IsZero())
	assert.Contains(t, o.Flags, FlagDiscountUnspecified+":1")
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := entity.RawOrder{Header: header("PO16"), Items: []entity.RawLineItem{item(1, "ITEM-A", "2", "1.25"), item(2, "NOPE", "1", "2")}}
	n := newNormalizer(t)

	first, err := n.Normalize(context.Background(), newResolver(), constants.SourceUNFI, "x.csv", raw)
	require.NoError(t, err)
	second, err := n.Normalize(context.Background(), newResolver(), constants.SourceUNFI, "x.csv", raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
