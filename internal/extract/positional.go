package extract

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
)

// extractPositional handles text documents whose item rows are fixed-order
// fields on a single line, one order per document.
func extractPositional(doc *entity.RawDocument, l *layout.Layout) ([]entity.RawOrder, []*common.Failure, error) {
	if len(doc.Lines) == 0 {
		f := common.NewEmptyTextError(nil)
		f.Stage = constants.StageExtract
		return nil, nil, f
	}
	h := positionalHeaderPlan(l).run(doc)
	out := RunChain("line_items", doc, positionalItemStrategies(l.Items))
	var set orderSet
	set.add(finalize(h, out.Value, out.Attempts))
	return set.result()
}

func positionalHeaderPlan(l *layout.Layout) headerPlan {
	p := headerPlan{
		orderNumber: append(patternStrategies(l.Patterns[layout.FieldOrderNumber]), filenameOrderNumber()),
		customer:    patternStrategies(l.Patterns[layout.FieldCustomer]),
		store:       patternStrategies(l.Patterns[layout.FieldStore]),
		dates:       make(map[entity.DateRole][]Strategy[time.Time]),
	}
	for _, role := range layout.DateRoles {
		if pats := l.Patterns[layout.DateField(role)]; len(pats) > 0 {
			p.dates[role] = dateStrategies(patternStrategies(pats))
		}
	}
	return p
}

func positionalItemStrategies(items layout.Items) []Strategy[[]entity.RawLineItem] {
	return []Strategy[[]entity.RawLineItem]{
		{Name: "marked_section", Confidence: constants.ConfidenceExact, Fn: func(doc *entity.RawDocument) ([]entity.RawLineItem, error) {
			section, ok := markedSection(doc.Lines, items.Markers)
			if !ok {
				return nil, declined("start marker %q not found", strings.Join(items.Markers.Start, " + "))
			}
			out := parseItemLines(section, items.Lines)
			if len(out) == 0 {
				return nil, declined("%d lines in section, none matched an item row", len(section))
			}
			return out, nil
		}},
		{Name: "document_rows", Confidence: constants.ConfidenceHeuristic, Fn: func(doc *entity.RawDocument) ([]entity.RawLineItem, error) {
			var lines []string
			for _, line := range doc.Lines {
				if !skipLine(line, items.Markers.Skip) {
					lines = append(lines, line)
				}
			}
			out := parseItemLines(lines, items.Lines)
			if len(out) == 0 {
				return nil, declined("no line in the document matched an item row")
			}
			return out, nil
		}},
	}
}

// markedSection returns the lines after the first line containing every start
// marker, up to the first line containing any end marker. Skip-prefixed lines are dropped.
func markedSection(lines []string, m layout.Markers) ([]string, bool) {
	if len(m.Start) == 0 {
		return nil, false
	}
	start := -1
	for i, line := range lines {
		if containsAll(line, m.Start) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}
	var out []string
	for _, line := range lines[start+1:] {
		if containsAny(line, m.End) {
			break
		}
		if skipLine(line, m.Skip) {
			continue
		}
		out = append(out, line)
	}
	return out, true
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func skipLine(line string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// parseItemLines tries each line pattern in order on every line.
func parseItemLines(lines []string, pats []layout.Pattern) []entity.RawLineItem {
	var out []entity.RawLineItem
	for _, line := range lines {
		for i := range pats {
			re := pats[i].Re()
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			group := func(name string) string {
				if idx := re.SubexpIndex(name); idx > 0 && idx < len(m) {
					return strings.TrimSpace(m[idx])
				}
				return ""
			}
			li, ok, _ := buildLineItem(itemCells{
				item:            group(layout.FieldItem),
				upc:             group(layout.FieldUPC),
				description:     group(layout.FieldDescription),
				quantity:        group(layout.FieldQuantity),
				unitCost:        group(layout.FieldUnitCost),
				total:           group(layout.FieldTotal),
				discountPercent: group(layout.FieldDiscountPercent),
				discountFlat:    group(layout.FieldDiscountFlat),
			})
			if ok {
				out = append(out, li)
				break
			}
		}
	}
	return out
}
