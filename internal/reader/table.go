package reader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

var delimiterCandidates = []rune{',', ';', '\t', '|'}

func (r *Reader) readCSV(doc *entity.RawDocument, b []byte) error {
	text, enc, err := decodeText(b, r.encodings)
	if err != nil {
		return err
	}
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = sniffDelimiter(text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return common.NewDecodeError([]string{enc + " csv"}, err)
		}
		if row := trimRow(rec); row != nil {
			rows = append(rows, row)
		}
	}
	doc.Rows = rows
	doc.Encoding = enc
	doc.Lines = rowLines(rows)
	return nil
}

func (r *Reader) readXLSX(doc *entity.RawDocument, b []byte) error {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return common.NewDecodeError([]string{"xlsx"}, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("reader.xlsx.close_failed", "document", doc.Name, "error", err)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		doc.Encoding = EncodingUTF8
		return nil
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return common.NewDecodeError([]string{"xlsx"}, fmt.Errorf("sheet %q: %w", sheets[0], err))
	}
	var rows [][]string
	for _, rec := range raw {
		if row := trimRow(rec); row != nil {
			rows = append(rows, row)
		}
	}
	doc.Rows = rows
	doc.Encoding = EncodingUTF8
	doc.Lines = rowLines(rows)
	return nil
}

// sniffDelimiter picks the candidate occurring most often in the first lines; ties favor the earlier candidate.
func sniffDelimiter(text string) rune {
	sample := text
	for i, n := 0, 0; i < len(text); i++ {
		if text[i] == '\n' {
			n++
			if n == 5 {
				sample = text[:i]
				break
			}
		}
	}
	best, bestCount := ',', 0
	for _, d := range delimiterCandidates {
		if c := strings.Count(sample, string(d)); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// trimRow trims every cell and returns nil for rows with no content.
func trimRow(rec []string) []string {
	row := make([]string, len(rec))
	empty := true
	for i, c := range rec {
		row[i] = strings.TrimSpace(c)
		if row[i] != "" {
			empty = false
		}
	}
	if empty {
		return nil
	}
	return row
}

func rowLines(rows [][]string) []string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, strings.Join(row, " "))
	}
	return normalizeLines(lines)
}
