// Package seed reads mapping spreadsheets into identifier mapping entries.
package seed

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

// Defaults fill columns a mapping file leaves out.
type Defaults struct {
	Source   constants.Source
	KeyType  constants.KeyType
	// Priority applies to rows without one; nil means entity.DefaultMappingPriority.
	Priority *int
}

const (
	colSource = iota
	colKeyType
	colRaw
	colCanonical
	colPriority
	colActive
	colVendor
	colDescription
	colNotes
)

var headerAliases = map[string]int{
	"source":           colSource,
	"partner":          colSource,
	"key type":         colKeyType,
	"type":             colKeyType,
	"raw value":        colRaw,
	"raw":              colRaw,
	"raw name":         colRaw,
	"raw item":         colRaw,
	"sps customer#":    colRaw,
	"canonical value":  colCanonical,
	"canonical":        colCanonical,
	"mapped":           colCanonical,
	"mapped name":      colCanonical,
	"xoro item#":       colCanonical,
	"xoro item number": colCanonical,
	"store mapping":    colCanonical,
	"priority":         colPriority,
	"active":           colActive,
	"vendor":           colVendor,
	"description":      colDescription,
	"notes":            colNotes,
}

func headerKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF")))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// LoadFile reads a .csv or .xlsx mapping file.
func LoadFile(path string, d Defaults) ([]entity.MappingEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	format, ok := constants.CanonicalFormat(filepath.Ext(path))
	if !ok || (format != constants.FormatCSV && format != constants.FormatXLSX) {
		return nil, common.NewUnsupportedFormatError(filepath.Ext(path))
	}
	return Parse(bytes.NewReader(data), format, d)
}

// Parse reads mapping rows. The first row is the header; when neither a raw nor a
// canonical column is recognised the first two columns are used.
func Parse(r io.Reader, format constants.Format, d Defaults) ([]entity.MappingEntry, error) {
	rows, err := readRows(r, format)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := map[int]int{}
	for i, h := range rows[0] {
		if c, ok := headerAliases[headerKey(h)]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	_, hasRaw := cols[colRaw]
	_, hasCanon := cols[colCanonical]
	if !hasRaw && !hasCanon {
		cols[colRaw], cols[colCanonical] = 0, 1
	}

	get := func(row []string, c int) string {
		i, ok := cols[c]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	priority := entity.DefaultMappingPriority
	if d.Priority != nil {
		priority = *d.Priority
	}
	var out []entity.MappingEntry
	for n, row := range rows[1:] {
		line := n + 2
		raw, canon := get(row, colRaw), get(row, colCanonical)
		if raw == "" && canon == "" {
			continue
		}
		if raw == "" || canon == "" {
			return nil, rowError(line, "raw and canonical values are both required")
		}
		e := entity.MappingEntry{
			RawValue:       strings.TrimSuffix(raw, ".0"),
			CanonicalValue: canon,
			Priority:       priority,
			Active:         true,
			Source:         d.Source,
			KeyType:        d.KeyType,
			Vendor:         get(row, colVendor),
			Description:    get(row, colDescription),
			Notes:          get(row, colNotes),
		}
		if s := get(row, colSource); s != "" {
			src, ok := constants.CanonicalSource(s)
			if !ok {
				return nil, rowError(line, fmt.Sprintf("unknown source %q", s))
			}
			e.Source = src
		}
		if e.Source == "" {
			return nil, rowError(line, "source is required")
		}
		if k := get(row, colKeyType); k != "" {
			kt, ok := constants.ParseKeyType(k)
			if !ok {
				return nil, rowError(line, fmt.Sprintf("unknown key type %q", k))
			}
			e.KeyType = kt
		}
		if e.KeyType == "" {
			return nil, rowError(line, "key type is required")
		}
		if p := get(row, colPriority); p != "" {
			v, err := strconv.Atoi(p)
			if err != nil || v < 0 {
				return nil, rowError(line, fmt.Sprintf("bad priority %q", p))
			}
			e.Priority = v
		}
		if a := get(row, colActive); a != "" {
			switch strings.ToLower(a) {
			case "1", "true", "yes", "y", "active":
			case "0", "false", "no", "n", "inactive":
				e.Active = false
			default:
				return nil, rowError(line, fmt.Sprintf("bad active flag %q", a))
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func rowError(line int, msg string) error {
	return common.NewAppError("SEED_ERROR", fmt.Sprintf("row %d: %s", line, msg), common.ErrInvalidInput)
}

func readRows(r io.Reader, format constants.Format) ([][]string, error) {
	switch format {
	case constants.FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, common.NewAppError("SEED_ERROR", "mapping csv", err)
		}
		return rows, nil
	case constants.FormatXLSX:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, common.NewAppError("SEED_ERROR", "mapping workbook", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, common.NewAppError("SEED_ERROR", "mapping sheet", err)
		}
		return rows, nil
	}
	return nil, common.NewUnsupportedFormatError(string(format))
}
