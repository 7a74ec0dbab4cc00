package extract

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
)

// SPS record types.
const (
	recordHeader   = "H"
	recordLine     = "D"
	recordDiscount = "I"
)

const spsHeaderScan = 10

// extractSPS handles the SPS Commerce CSV export: one row per record, typed by
// the record type column, several purchase orders per file.
func extractSPS(doc *entity.RawDocument, l *layout.Layout) ([]entity.RawOrder, []*common.Failure, error) {
	hi, cols := findHeaderRow(doc.Rows, l.Columns, l.ColumnMatch, spsHeaderScan, layout.FieldOrderNumber, layout.FieldItem, layout.FieldQuantity)
	if hi < 0 {
		return nil, nil, common.NewNoLineItemsFoundError([]common.StrategyAttempt{{
			Field: "header_row", Strategy: "sps_columns", Reason: "no row names the order number, item and quantity columns",
		}})
	}
	header := doc.Rows[hi]
	groups := rowGrouping{cols: cols, field: layout.FieldOrderNumber, end: l.Items.Markers.End}.split(doc.Rows[hi+1:])

	plan := spsHeaderPlan(cols)
	var set orderSet
	for _, g := range groups {
		sub := subDocument(doc, header, g)
		out := RunChain("line_items", sub, spsItemStrategies(cols))
		set.add(finalize(plan.run(sub), out.Value, out.Attempts))
	}
	return set.result()
}

// rowGrouping splits item rows into orders by the value in field, keeping
// first-seen order. Rows with an empty value stay with the preceding group.
type rowGrouping struct {
	cols  columnMap
	field string
	// end lists totals-row markers. A totals row is dropped and closes the
	// current group; rows after it join a group only by naming its key.
	end []string
	// opens reports whether a row with an unseen key may start an order. A row
	// that may not stays with the group above it. Nil lets every key open.
	opens func(row []string) bool
}

func (g rowGrouping) split(rows [][]string) [][][]string {
	var groups [][][]string
	index := make(map[string]int)
	current := -1
	closed := false
	for _, row := range rows {
		if endsItems(row, g.end) {
			closed = true
			continue
		}
		key := ""
		if g.field != "" {
			key = g.cols.get(row, g.field)
		}
		switch i, seen := index[key]; {
		case key != "" && seen:
			current, closed = i, false
		case key != "" && (current < 0 || g.opens == nil || g.opens(row)):
			index[key] = len(groups)
			current, closed = len(groups), false
			groups = append(groups, nil)
		case closed:
			continue
		case current < 0:
			current = len(groups)
			groups = append(groups, nil)
		}
		groups[current] = append(groups[current], row)
	}
	return groups
}

func recordType(cols columnMap, row []string) string {
	return strings.ToUpper(cols.get(row, layout.FieldRecordType))
}

// spsColumn reads field from the first data row whose record type is in types; no types means any row.
func spsColumn(cols columnMap, field string, types ...string) func(doc *entity.RawDocument) (string, error) {
	return func(doc *entity.RawDocument) (string, error) {
		if !cols.has(field) {
			return "", declined("column not present")
		}
		for _, row := range doc.Rows[1:] {
			if len(types) > 0 {
				rt := recordType(cols, row)
				match := false
				for _, t := range types {
					if rt == t {
						match = true
						break
					}
				}
				if !match {
					continue
				}
			}
			if v := cols.get(row, field); v != "" {
				return v, nil
			}
		}
		if len(types) > 0 {
			return "", declined("no %s record with a value", strings.Join(types, "/"))
		}
		return "", declined("no row with a value")
	}
}

func spsFieldChain(cols columnMap, field string) []Strategy[string] {
	return []Strategy[string]{
		{Name: "header_record", Confidence: constants.ConfidenceExact, Fn: spsColumn(cols, field, recordHeader)},
		{Name: "any_record", Confidence: constants.ConfidenceHeuristic, Fn: spsColumn(cols, field)},
	}
}

func spsHeaderPlan(cols columnMap) headerPlan {
	p := headerPlan{
		orderNumber: append(spsFieldChain(cols, layout.FieldOrderNumber), filenameOrderNumber()),
		customer:    spsFieldChain(cols, layout.FieldCustomer),
		store:       spsFieldChain(cols, layout.FieldStore),
		dates:       make(map[entity.DateRole][]Strategy[time.Time]),
	}
	for _, role := range layout.DateRoles {
		field := layout.DateField(role)
		if cols.has(field) {
			p.dates[role] = dateStrategies(spsFieldChain(cols, field))
		}
	}
	return p
}

func spsItemStrategies(cols columnMap) []Strategy[[]entity.RawLineItem] {
	return []Strategy[[]entity.RawLineItem]{
		{Name: "detail_records", Confidence: constants.ConfidenceExact, Fn: func(doc *entity.RawDocument) ([]entity.RawLineItem, error) {
			if !cols.has(layout.FieldRecordType) {
				return nil, declined("no record type column")
			}
			items, rejected := spsDetailRecords(doc.Rows[1:], cols)
			if len(items) == 0 {
				return nil, declined("no acceptable D records (%d rejected)", rejected)
			}
			return items, nil
		}},
		{Name: "untyped_rows", Confidence: constants.ConfidenceHeuristic, Fn: func(doc *entity.RawDocument) ([]entity.RawLineItem, error) {
			var items []entity.RawLineItem
			for _, row := range doc.Rows[1:] {
				if rt := recordType(cols, row); rt == recordHeader || rt == recordDiscount {
					continue
				}
				if li, ok, _ := buildLineItem(spsCells(cols, row)); ok {
					items = append(items, li)
				}
			}
			if len(items) == 0 {
				return nil, declined("no row has an item and a positive quantity")
			}
			return items, nil
		}},
	}
}

func spsCells(cols columnMap, row []string) itemCells {
	return itemCells{
		item:        cols.get(row, layout.FieldItem),
		upc:         cols.get(row, layout.FieldUPC),
		description: cols.get(row, layout.FieldDescription),
		quantity:    cols.get(row, layout.FieldQuantity),
		unitCost:    cols.get(row, layout.FieldUnitCost),
		total:       cols.get(row, layout.FieldTotal),
	}
}

// spsDetailRecords reads D records and applies the first I record that follows
// a D record before the next D record.
func spsDetailRecords(rows [][]string, cols columnMap) ([]entity.RawLineItem, int) {
	var items []entity.RawLineItem
	rejected := 0
	last := -1
	for _, row := range rows {
		switch recordType(cols, row) {
		case recordLine:
			li, ok, _ := buildLineItem(spsCells(cols, row))
			if !ok {
				rejected++
				last = -1
				continue
			}
			items = append(items, li)
			last = len(items) - 1
		case recordDiscount:
			if last < 0 || items[last].Discount != nil {
				continue
			}
			li := &items[last]
			li.Discount = OptimalDiscount(li.Quantity, li.UnitCost,
				optionalDecimal(cols.get(row, layout.FieldDiscountPercent)),
				optionalDecimal(cols.get(row, layout.FieldDiscountFlat)),
				cols.get(row, layout.FieldDescription),
			)
			last = -1
		}
	}
	return items, rejected
}
