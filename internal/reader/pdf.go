package reader

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

const (
	pdfMethodRows   = "pdf-rows"
	pdfMethodStream = "pdf-content-stream"
)

// readPDF takes the row-ordered text layer first and falls back to raw content streams.
// Blank output from every method that parsed the file is an EmptyTextError; a file
// neither method can parse is a DecodeError.
func (r *Reader) readPDF(doc *entity.RawDocument, b []byte) error {
	var attempts []common.StrategyAttempt
	parsed := false

	lines, err := pdfRowLines(b)
	switch {
	case err != nil:
		attempts = append(attempts, common.StrategyAttempt{Field: "text", Strategy: pdfMethodRows, Reason: err.Error()})
	case len(lines) == 0:
		parsed = true
		attempts = append(attempts, common.StrategyAttempt{Field: "text", Strategy: pdfMethodRows, Reason: "blank text layer"})
	default:
		doc.Lines = lines
		doc.Encoding = pdfMethodRows
		return nil
	}

	r.logger.Info("reader.pdf.fallback", "document", doc.Name, "reason", attempts[0].Reason)

	lines, err = pdfStreamLines(b)
	switch {
	case err != nil:
		attempts = append(attempts, common.StrategyAttempt{Field: "text", Strategy: pdfMethodStream, Reason: err.Error()})
	case len(lines) == 0:
		parsed = true
		attempts = append(attempts, common.StrategyAttempt{Field: "text", Strategy: pdfMethodStream, Reason: "no text operators"})
	default:
		doc.Lines = lines
		doc.Encoding = pdfMethodStream
		return nil
	}

	if parsed {
		return common.NewEmptyTextError(attempts)
	}
	f := common.NewDecodeError([]string{pdfMethodRows, pdfMethodStream}, err)
	f.Attempts = attempts
	return f
}

// glyphRun is one positioned text run on a page row.
type glyphRun struct {
	X, W, FontSize float64
	S              string
}

func pdfRowLines(b []byte) (lines []string, err error) {
	// the parser panics on some malformed xref tables
	defer func() {
		if rec := recover(); rec != nil {
			lines, err = nil, fmt.Errorf("pdf parse: %v", rec)
		}
	}()

	rd, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("pdf open: %w", err)
	}
	for i := 1; i <= rd.NumPage(); i++ {
		p := rd.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			runs := make([]glyphRun, 0, len(row.Content))
			for _, t := range row.Content {
				runs = append(runs, glyphRun{X: t.X, W: t.W, FontSize: t.FontSize, S: t.S})
			}
			if line := joinRuns(runs); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return normalizeLines(lines), nil
}

// joinRuns concatenates runs left to right, inserting a space where the
// horizontal gap is wider than a fraction of the font size.
func joinRuns(runs []glyphRun) string {
	var sb strings.Builder
	var prev *glyphRun
	for i := range runs {
		run := runs[i]
		if prev != nil {
			gap := run.X - (prev.X + prev.W)
			threshold := math.Max(1.0, run.FontSize*0.2)
			if gap > threshold && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(run.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(run.S)
		prev = &runs[i]
	}
	return strings.TrimSpace(sb.String())
}

func pdfStreamLines(b []byte) ([]string, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(b), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	var lines []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		rd, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || rd == nil {
			continue
		}
		data, err := io.ReadAll(rd)
		if err != nil || len(data) == 0 {
			continue
		}
		lines = append(lines, contentStreamLines(data)...)
	}
	return normalizeLines(lines), nil
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// contentStreamLines reads Tj, TJ and ' operators, breaking lines on T*, ET
// and Td/TD moves with a vertical component.
func contentStreamLines(data []byte) []string {
	var lines []string
	var sb strings.Builder
	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			lines = append(lines, s)
		}
		sb.Reset()
	}

	for _, raw := range bytes.Split(data, []byte{'\n'}) {
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			flush()
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			fields := bytes.Fields(line)
			if len(fields) >= 3 && !isZero(fields[len(fields)-2]) {
				flush()
			} else if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			flush()
		}
	}
	flush()
	return lines
}

func isZero(f []byte) bool {
	s := strings.TrimLeft(string(f), "-+")
	s = strings.Trim(s, "0.")
	return s == ""
}

// decodePDFString handles the escape sequences of literal strings.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
