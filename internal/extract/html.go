package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
)

const labelSelector = "td, th, dt, label, strong, b, span"

// extractLabeledHTML handles HTML pages where header fields sit next to a
// visible label and line items live in a table.
func extractLabeledHTML(doc *entity.RawDocument, l *layout.Layout) ([]entity.RawOrder, []*common.Failure, error) {
	h := labeledHeaderPlan(l).run(doc)
	out := RunChain("line_items", doc, htmlItemStrategies(l))
	var set orderSet
	set.add(finalize(h, out.Value, out.Attempts))
	return set.result()
}

func labeledHeaderPlan(l *layout.Layout) headerPlan {
	chain := func(field string) []Strategy[string] {
		var out []Strategy[string]
		if labels := l.Labels[field]; len(labels) > 0 {
			out = append(out,
				Strategy[string]{Name: "label_cell", Confidence: constants.ConfidenceExact, Fn: labelCell(labels)},
				Strategy[string]{Name: "label_inline", Confidence: constants.ConfidenceHeuristic, Fn: labelInline(labels)},
			)
		}
		return append(out, patternStrategies(l.Patterns[field])...)
	}
	p := headerPlan{
		orderNumber: append(chain(layout.FieldOrderNumber), filenameOrderNumber()),
		customer:    chain(layout.FieldCustomer),
		store:       chain(layout.FieldStore),
		dates:       make(map[entity.DateRole][]Strategy[time.Time]),
	}
	for _, role := range layout.DateRoles {
		if c := chain(layout.DateField(role)); len(c) > 0 {
			p.dates[role] = dateStrategies(c)
		}
	}
	return p
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimSpace(strings.TrimRight(s, ": "))
}

// labelCell finds an element whose whole text is a label and reads the value beside it.
func labelCell(labels []string) func(doc *entity.RawDocument) (string, error) {
	return func(doc *entity.RawDocument) (string, error) {
		if doc.Root == nil {
			return "", declined("document has no element tree")
		}
		sel := goquery.NewDocumentFromNode(doc.Root).Find(labelSelector)
		for _, label := range labels {
			want := normalizeLabel(label)
			var value string
			sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if normalizeLabel(s.Text()) != want {
					return true
				}
				value = valueBeside(s)
				return value == ""
			})
			if value != "" {
				return value, nil
			}
		}
		return "", declined("no element labelled %q", strings.Join(labels, "|"))
	}
}

// valueBeside returns the text following a label element: a sibling text node,
// the next sibling element, or the next cell when the label fills its own cell.
func valueBeside(s *goquery.Selection) string {
	for n := s.Get(0).NextSibling; n != nil; n = n.NextSibling {
		var v string
		switch n.Type {
		case html.TextNode:
			v = n.Data
		case html.ElementNode:
			v = goquery.NewDocumentFromNode(n).Text()
		}
		v = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(v), ":#"))
		if v != "" {
			return v
		}
	}
	cell := s.Closest("td, th, dt")
	if cell.Length() == 0 {
		return ""
	}
	next := cell.NextAllFiltered("td, th, dd").First()
	return strings.TrimSpace(next.Text())
}

// labelInline reads "Label: value" or "Label # value" from the visible text lines.
func labelInline(labels []string) func(doc *entity.RawDocument) (string, error) {
	res := make([]*regexp.Regexp, 0, len(labels))
	for _, label := range labels {
		res = append(res, regexp.MustCompile(`(?i)^\s*`+regexp.QuoteMeta(label)+`\s*[:#]+\s*(.+)$`))
	}
	return func(doc *entity.RawDocument) (string, error) {
		for _, re := range res {
			for _, line := range doc.Lines {
				if m := re.FindStringSubmatch(line); m != nil {
					return strings.TrimSpace(m[1]), nil
				}
			}
		}
		return "", declined("no line starts with a label")
	}
}

func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.ChildrenFiltered("td, th").Each(func(_ int, c *goquery.Selection) {
		cells = append(cells, strings.Join(strings.Fields(c.Text()), " "))
	})
	return cells
}

func htmlItemStrategies(l *layout.Layout) []Strategy[[]entity.RawLineItem] {
	end := l.Items.Markers.End
	return []Strategy[[]entity.RawLineItem]{
		{Name: "header_table", Confidence: constants.ConfidenceExact, Fn: func(doc *entity.RawDocument) ([]entity.RawLineItem, error) {
			if doc.Root == nil {
				return nil, declined("document has no element tree")
			}
			var items []entity.RawLineItem
			found := false
			goquery.NewDocumentFromNode(doc.Root).Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
				cols := mapColumns(rowCells(tr), l.Columns, l.ColumnMatch)
				if !cols.has(layout.FieldItem) || !cols.has(layout.FieldQuantity) {
					return true
				}
				found = true
				ended := false
				take := func(_ int, row *goquery.Selection) bool {
					cells := rowCells(row)
					if endsItems(cells, end) {
						ended = true
						return false
					}
					if li, ok, _ := buildLineItem(columnCells(cols, cells)); ok {
						items = append(items, li)
					}
					return true
				}
				tr.NextAll().EachWithBreak(take)
				// a tbody after a thead holds the data rows
				if !ended {
					tr.Parent().NextAllFiltered("tbody").Find("tr").EachWithBreak(take)
				}
				return false
			})
			if !found {
				return nil, declined("no table row names both item and quantity columns")
			}
			if len(items) == 0 {
				return nil, declined("item table has no row with an item and a positive quantity")
			}
			return items, nil
		}},
		{Name: "positional_table", Confidence: constants.ConfidenceHeuristic, Fn: func(doc *entity.RawDocument) ([]entity.RawLineItem, error) {
			if doc.Root == nil {
				return nil, declined("document has no element tree")
			}
			if len(l.Items.Positional) == 0 {
				return nil, declined("no positional columns configured")
			}
			cols := make(columnMap, len(l.Items.Positional))
			for i, f := range l.Items.Positional {
				cols[f] = i
			}
			minCols := l.Items.MinColumns
			if minCols <= 0 {
				minCols = len(l.Items.Positional)
			}
			var items []entity.RawLineItem
			goquery.NewDocumentFromNode(doc.Root).Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
				cells := rowCells(tr)
				if len(cells) < minCols {
					return true
				}
				if hc := mapColumns(cells, l.Columns, l.ColumnMatch); hc.has(layout.FieldItem) || hc.has(layout.FieldQuantity) {
					return true
				}
				if endsItems(cells, end) {
					return len(items) == 0
				}
				if li, ok, _ := buildLineItem(columnCells(cols, cells)); ok {
					items = append(items, li)
				}
				return true
			})
			if len(items) == 0 {
				return nil, declined("no row with at least %d cells parsed as an item", minCols)
			}
			return items, nil
		}},
	}
}

func columnCells(cols columnMap, row []string) itemCells {
	return itemCells{
		item:            cols.get(row, layout.FieldItem),
		upc:             cols.get(row, layout.FieldUPC),
		description:     cols.get(row, layout.FieldDescription),
		quantity:        cols.get(row, layout.FieldQuantity),
		unitCost:        cols.get(row, layout.FieldUnitCost),
		total:           cols.get(row, layout.FieldTotal),
		discountPercent: cols.get(row, layout.FieldDiscountPercent),
		discountFlat:    cols.get(row, layout.FieldDiscountFlat),
	}
}
