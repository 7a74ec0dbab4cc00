package extract

import (
	"sort"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
)

// fieldOrder fixes which field claims a column first when aliases overlap.
var fieldOrder = []string{
	layout.FieldRecordType,
	layout.FieldOrderNumber,
	layout.FieldDiscountPercent,
	layout.FieldDiscountFlat,
	layout.FieldUPC,
	layout.FieldItem,
	layout.FieldQuantity,
	layout.FieldUnitCost,
	layout.FieldTotal,
	layout.FieldDescription,
	layout.FieldCustomer,
	layout.FieldStore,
}

func init() {
	for _, role := range layout.DateRoles {
		fieldOrder = append(fieldOrder, layout.DateField(role))
	}
}

// columnMap maps a field key to a column index.
type columnMap map[string]int

func (m columnMap) has(field string) bool {
	_, ok := m[field]
	return ok
}

// get returns the trimmed cell for field, or "" when unmapped or out of range.
func (m columnMap) get(row []string, field string) string {
	i, ok := m[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// normalizeHeader lowercases and reduces punctuation to single spaces; % and # survive as words.
func normalizeHeader(s string) string {
	var sb strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			space = false
		case r == '%' || r == '#':
			if !space {
				sb.WriteByte(' ')
			}
			sb.WriteRune(r)
			sb.WriteByte(' ')
			space = true
		case r == '\'' || r == '’':
			// buyer's -> buyers
		default:
			if !space {
				sb.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

type aliasTerms struct {
	want []string
	not  []string
}

func parseAlias(alias string) aliasTerms {
	var t aliasTerms
	for _, tok := range strings.Fields(alias) {
		neg := strings.HasPrefix(tok, "!")
		norm := normalizeHeader(strings.TrimPrefix(tok, "!"))
		if norm == "" {
			continue
		}
		for _, w := range strings.Fields(norm) {
			if neg {
				t.not = append(t.not, w)
			} else {
				t.want = append(t.want, w)
			}
		}
	}
	return t
}

func wordMatches(words []string, term string) bool {
	for _, w := range words {
		if w == term || (len(term) >= 3 && strings.HasPrefix(w, term)) {
			return true
		}
	}
	return false
}

func (t aliasTerms) matches(header string) bool {
	words := strings.Fields(header)
	if len(t.want) == 0 || len(words) == 0 {
		return false
	}
	for _, w := range t.want {
		if !wordMatches(words, w) {
			return false
		}
	}
	for _, n := range t.not {
		if wordMatches(words, n) {
			return false
		}
	}
	return true
}

// mapColumns assigns header cells to fields. Exact normalized matches win over
// word matches, fields claim columns in fieldOrder, and each column is used once.
func mapColumns(header []string, aliases map[string][]string, mode string) columnMap {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = normalizeHeader(h)
	}
	taken := make(map[int]bool, len(header))
	out := make(columnMap)

	for _, field := range orderedFields(aliases) {
		list := aliases[field]
		idx := -1
		for _, a := range list {
			na := normalizeHeader(a)
			for i, h := range norm {
				if !taken[i] && h != "" && h == na {
					idx = i
					break
				}
			}
			if idx >= 0 {
				break
			}
		}
		if idx < 0 && mode == layout.MatchContains {
			for _, a := range list {
				terms := parseAlias(a)
				for i, h := range norm {
					if !taken[i] && terms.matches(h) {
						idx = i
						break
					}
				}
				if idx >= 0 {
					break
				}
			}
		}
		if idx >= 0 {
			out[field] = idx
			taken[idx] = true
		}
	}
	return out
}

func orderedFields(aliases map[string][]string) []string {
	seen := make(map[string]bool, len(aliases))
	out := make([]string, 0, len(aliases))
	for _, f := range fieldOrder {
		if _, ok := aliases[f]; ok {
			out = append(out, f)
			seen[f] = true
		}
	}
	var rest []string
	for f := range aliases {
		if !seen[f] {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// findHeaderRow returns the first row among the first limit rows that maps every required field.
func findHeaderRow(rows [][]string, aliases map[string][]string, mode string, limit int, required ...string) (int, columnMap) {
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		cols := mapColumns(rows[i], aliases, mode)
		ok := true
		for _, f := range required {
			if !cols.has(f) {
				ok = false
				break
			}
		}
		if ok {
			return i, cols
		}
	}
	return -1, nil
}

// endsItems reports whether row is a totals row: its first non-empty cell
// normalizes to one of the end markers.
func endsItems(row []string, end []string) bool {
	if len(end) == 0 {
		return false
	}
	for _, c := range row {
		cell := normalizeHeader(c)
		if cell == "" {
			continue
		}
		for _, m := range end {
			if cell == normalizeHeader(m) {
				return true
			}
		}
		return false
	}
	return false
}

// subDocument scopes doc to a header row plus a subset of rows.
func subDocument(doc *entity.RawDocument, header []string, rows [][]string) *entity.RawDocument {
	sub := *doc
	sub.Rows = make([][]string, 0, len(rows)+1)
	sub.Rows = append(sub.Rows, header)
	sub.Rows = append(sub.Rows, rows...)
	return &sub
}
