package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

const sheetName = "Orders"

// Service writes import sheets for canonical orders.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// XLSX returns a workbook with one header row and one row per line item.
func (s *Service) XLSX(orders []entity.CanonicalOrder) ([]byte, error) {
	start := time.Now()
	rows := Rows(orders)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, exportFailure("rename sheet", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, exportFailure("write header", err)
	}
	for i, r := range rows {
		vals := r.Values()
		cells := make([]any, len(vals))
		for j, v := range vals {
			cells[j] = cellValue(Columns[j], v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return nil, exportFailure("write row", err)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 36) // import errors
	_ = f.SetColWidth(sheetName, "B", "I", 18)
	_ = f.SetColWidth(sheetName, "Z", "Z", 48) // memo
	_ = f.SetColWidth(sheetName, "AE", "AF", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, exportFailure("xlsx write", err)
	}
	s.logger.Info("export.xlsx.ok",
		"orders", len(orders),
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// cellValue keeps numeric columns numeric in the workbook.
func cellValue(column, v string) any {
	if !numericColumns[column] || v == "" {
		return v
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return v
	}
	return d.InexactFloat64()
}

// WriteCSV writes the same rows as comma separated values.
func (s *Service) WriteCSV(w io.Writer, orders []entity.CanonicalOrder) error {
	rows := Rows(orders)
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return exportFailure("csv header", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return exportFailure("csv row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return exportFailure("csv flush", err)
	}
	s.logger.Info("export.csv.ok", "orders", len(orders), "rows", len(rows))
	return nil
}

// WriteFile picks the format from the path extension (.xlsx or .csv).
func (s *Service) WriteFile(path string, orders []entity.CanonicalOrder) error {
	var data []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		b, err := s.XLSX(orders)
		if err != nil {
			return err
		}
		data = b
	case ".csv":
		var buf bytes.Buffer
		if err := s.WriteCSV(&buf, orders); err != nil {
			return err
		}
		data = buf.Bytes()
	default:
		return &common.Failure{Kind: common.ErrUnsupportedFormat, Stage: constants.StageExport, Detail: fmt.Sprintf("output %q", ext)}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportFailure("create output dir", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return exportFailure("write output", err)
	}
	return nil
}

func exportFailure(step string, err error) *common.Failure {
	return &common.Failure{Kind: common.ErrInternal, Stage: constants.StageExport, Detail: step, Cause: err}
}
