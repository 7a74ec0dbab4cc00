package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
)

const tabularHeaderScan = 15

var reTitleOrderNumber = regexp.MustCompile(`(?i)\b(?:purchase\s+order|order|po|reference|ref)\s*(?:#|no\.?|number|ref)?\s*[:#]?\s*(\d[\w-]{3,})`)

// extractTabular handles spreadsheets with one item per row under a header row
// whose names vary. An order number column splits the sheet into orders.
func extractTabular(doc *entity.RawDocument, l *layout.Layout) ([]entity.RawOrder, []*common.Failure, error) {
	hi, cols := findHeaderRow(doc.Rows, l.Columns, l.ColumnMatch, tabularHeaderScan, layout.FieldItem, layout.FieldQuantity)
	if hi < 0 {
		return nil, nil, common.NewNoLineItemsFoundError([]common.StrategyAttempt{{
			Field: "header_row", Strategy: "column_aliases",
			Reason: "no row in the first 15 names both item and quantity columns",
		}})
	}
	header := doc.Rows[hi]
	preamble := doc.Rows[:hi]

	grouping := rowGrouping{
		cols: cols,
		end:  l.Items.Markers.End,
		opens: func(row []string) bool {
			_, ok, _ := buildLineItem(columnCells(cols, row))
			return ok
		},
	}
	if cols.has(layout.FieldOrderNumber) {
		grouping.field = layout.FieldOrderNumber
	}
	groups := grouping.split(doc.Rows[hi+1:])

	plan := tabularHeaderPlan(cols, preamble)
	var set orderSet
	for _, g := range groups {
		sub := subDocument(doc, header, g)
		h := plan.run(sub)
		out := RunChain("line_items", sub, []Strategy[[]entity.RawLineItem]{{
			Name: "column_rows", Confidence: constants.ConfidenceExact, Fn: func(d *entity.RawDocument) ([]entity.RawLineItem, error) {
				var items []entity.RawLineItem
				rejected := 0
				for _, row := range d.Rows[1:] {
					li, ok, _ := buildLineItem(columnCells(cols, row))
					if !ok {
						rejected++
						continue
					}
					items = append(items, li)
				}
				if len(items) == 0 {
					return nil, declined("%d rows, none with an item and a positive quantity", rejected)
				}
				return items, nil
			},
		}})
		set.add(finalize(h, out.Value, out.Attempts))
	}
	return set.result()
}

func firstColumnValue(cols columnMap, field string) func(doc *entity.RawDocument) (string, error) {
	return func(doc *entity.RawDocument) (string, error) {
		if !cols.has(field) {
			return "", declined("column not present")
		}
		for _, row := range doc.Rows[1:] {
			if v := cols.get(row, field); v != "" {
				return v, nil
			}
		}
		return "", declined("column is empty")
	}
}

func tabularHeaderPlan(cols columnMap, preamble [][]string) headerPlan {
	column := func(field string) []Strategy[string] {
		return []Strategy[string]{{Name: "column", Confidence: constants.ConfidenceExact, Fn: firstColumnValue(cols, field)}}
	}
	title := Strategy[string]{
		Name:       "title_rows",
		Confidence: constants.ConfidenceHeuristic,
		Fn: func(*entity.RawDocument) (string, error) {
			for _, row := range preamble {
				if m := reTitleOrderNumber.FindStringSubmatch(strings.Join(row, " ")); m != nil {
					return m[1], nil
				}
			}
			return "", declined("%d rows above the header, no order reference", len(preamble))
		},
	}
	p := headerPlan{
		orderNumber: append(column(layout.FieldOrderNumber), title, filenameOrderNumber()),
		customer:    column(layout.FieldCustomer),
		store:       column(layout.FieldStore),
		dates:       make(map[entity.DateRole][]Strategy[time.Time]),
	}
	for _, role := range layout.DateRoles {
		field := layout.DateField(role)
		if cols.has(field) {
			p.dates[role] = dateStrategies(column(field))
		}
	}
	return p
}
