package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/extract"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
	"github.com/joseph-ayodele/order-transformer/internal/metrics"
	"github.com/joseph-ayodele/order-transformer/internal/normalize"
	"github.com/joseph-ayodele/order-transformer/internal/reader"
	"github.com/joseph-ayodele/order-transformer/internal/repository"
)

type fakeLookup struct {
	mu      sync.Mutex
	calls   int
	err     error
	entries map[constants.KeyType]map[string]string
}

func (f *fakeLookup) ActiveMappings(_ context.Context, source constants.Source, keyTypes []constants.KeyType) ([]entity.MappingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []entity.MappingEntry
	for _, kt := range keyTypes {
		for raw, canonical := range f.entries[kt] {
			out = append(out, entity.MappingEntry{
				ID: int64(len(out) + 1), Source: source, KeyType: kt,
				RawValue: raw, CanonicalValue: canonical, Priority: 100, Active: true,
			})
		}
	}
	return out, nil
}

func newLookup() *fakeLookup {
	return &fakeLookup{entries: map[constants.KeyType]map[string]string{
		constants.KeyVendorItem: {"ITEM-A": "XO-100", "ITEM-B": "XO-200"},
	}}
}

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	set, err := layout.Default()
	require.NoError(t, err)
	return NewProcessor(nil,
		NewReadStage(reader.New(nil), nil),
		NewParseStage(extract.New(set, nil), normalize.New(set, nil), nil),
	)
}

const unfiCSV = `Order Number,Order Date,Item Number,Description,Qty,Unit Price,Discount %
PO1001,2025-01-05,ITEM-A,Apples,2,10.00,
PO1001,2025-01-05,ITEM-B,Bananas,1,5.00,10
PO1001,2025-01-05,ITEM-C,Cherries,0,3.00,
`

const unmappedCSV = `Order Number,Order Date,Item Number,Description,Qty,Unit Price
PO2002,2025-01-06,ITEM-X,Unknown,1,1.00
PO2002,2025-01-06,ITEM-Y,Unknown,2,1.00
`

func csvUpload(name, body string) entity.RawUpload {
	return entity.RawUpload{ID: uuid.New(), Name: name, Source: constants.SourceUNFI, Format: constants.FormatCSV, Bytes: []byte(body)}
}

func blankPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << >> >>",
		"<< /Length 0 >>\nstream\n\nendstream",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestProcessCSVOrder(t *testing.T) {
	lookup := newLookup()
	b := NewBatch(newProcessor(t), lookup, nil)

	report, err := b.Run(context.Background(), []entity.RawUpload{csvUpload("po1001.csv", unfiCSV)})
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	require.Len(t, report.Orders, 1)

	o := report.Orders[0]
	assert.Equal(t, "PO1001", o.OrderNumber)
	require.Len(t, o.LineItems, 2)
	assert.Equal(t, "XO-100", o.LineItems[0].ResolvedItemID)
	assert.Equal(t, "XO-200", o.LineItems[1].ResolvedItemID)
	assert.True(t, decimal.RequireFromString("4.50").Equal(o.LineItems[1].LineTotal))
	for _, li := range o.LineItems {
		assert.True(t, li.Quantity.Mul(li.UnitPrice).Equal(li.LineTotal))
	}
}

func TestBatchContinuesPastEmptyPDF(t *testing.T) {
	uploads := []entity.RawUpload{
		{ID: uuid.New(), Name: "blank.pdf", Source: constants.SourceUNFIEast, Format: constants.FormatPDF, Bytes: blankPDF()},
		csvUpload("po1001.csv", unfiCSV),
	}

	report, err := NewBatch(newProcessor(t), newLookup(), nil, WithWorkers(2)).Run(context.Background(), uploads)
	require.NoError(t, err)
	require.Len(t, report.Documents, 2)

	blank := report.Documents[0]
	require.NotNil(t, blank.Failure)
	assert.ErrorIs(t, blank.Failure, common.ErrEmptyText)
	assert.Equal(t, constants.StageRead, blank.Failure.Stage)
	assert.Equal(t, "blank.pdf", blank.Failure.Document)
	assert.Equal(t, uploads[0].ID.String(), blank.Failure.DocumentID)
	assert.Empty(t, blank.Orders)

	assert.True(t, report.Documents[1].OK())
	require.Len(t, report.Orders, 1)
	require.Len(t, report.Failures, 1)
}

func TestBatchRejectsFullyUnresolvedOrder(t *testing.T) {
	report, err := NewBatch(newProcessor(t), newLookup(), nil).Run(context.Background(), []entity.RawUpload{
		csvUpload("unmapped.csv", unmappedCSV),
		csvUpload("po1001.csv", unfiCSV),
	})
	require.NoError(t, err)

	bad := report.Documents[0]
	require.NotNil(t, bad.Failure)
	assert.ErrorIs(t, bad.Failure, common.ErrUnresolvedIdentifier)
	assert.Equal(t, constants.StageNormalize, bad.Failure.Stage)
	require.Len(t, report.Failures, 1)
	require.Len(t, report.Orders, 1)
	assert.Equal(t, 2, report.UnresolvedByKeyType[constants.KeyVendorItem])
}

func TestBatchKeepsOrdersBesideRejectedOne(t *testing.T) {
	body := `Order Number,Order Date,Item Number,Description,Qty,Unit Price
PO3003,2025-01-05,ITEM-B,Bananas,0,5.00
PO1001,2025-01-05,ITEM-A,Apples,2,10.00
PO1001,2025-01-05,ITEM-B,Bananas,1,5.00
Total,,,,3,25.00
`
	report, err := NewBatch(newProcessor(t), newLookup(), nil).Run(context.Background(), []entity.RawUpload{csvUpload("mixed.csv", body)})
	require.NoError(t, err)
	require.Len(t, report.Documents, 1)

	d := report.Documents[0]
	assert.True(t, d.OK())
	require.Len(t, d.Orders, 1)
	assert.Equal(t, "PO1001", d.Orders[0].OrderNumber)
	assert.Len(t, d.Orders[0].LineItems, 2)

	require.Len(t, d.Rejected, 1)
	assert.ErrorIs(t, d.Rejected[0], common.ErrNoLineItemsFound)
	assert.Equal(t, "mixed.csv", d.Rejected[0].Document)
	require.Len(t, report.Failures, 1)
}

func TestBatchSharesCacheAcrossDocuments(t *testing.T) {
	lookup := newLookup()
	uploads := make([]entity.RawUpload, 6)
	for i := range uploads {
		uploads[i] = csvUpload(fmt.Sprintf("po%d.csv", i), unfiCSV)
	}

	report, err := NewBatch(newProcessor(t), lookup, nil, WithWorkers(3)).Run(context.Background(), uploads)
	require.NoError(t, err)
	require.Len(t, report.Orders, 6)
	assert.Equal(t, 1, report.Cache.Loads)
	assert.Greater(t, report.Cache.Hits, 0)

	// a new run starts with an empty cache
	before := lookup.calls
	_, err = NewBatch(newProcessor(t), lookup, nil).Run(context.Background(), uploads[:1])
	require.NoError(t, err)
	assert.Greater(t, lookup.calls, before)
}

func TestBatchIsDeterministic(t *testing.T) {
	uploads := []entity.RawUpload{csvUpload("po1001.csv", unfiCSV), csvUpload("unmapped.csv", unmappedCSV)}
	b := NewBatch(newProcessor(t), newLookup(), nil, WithWorkers(2))

	first, err := b.Run(context.Background(), uploads)
	require.NoError(t, err)
	second, err := b.Run(context.Background(), uploads)
	require.NoError(t, err)
	assert.Equal(t, first.Orders, second.Orders)
}

func TestBatchLookupFailureFailsDocument(t *testing.T) {
	lookup := newLookup()
	lookup.err = errors.New("connection refused")

	report, err := NewBatch(newProcessor(t), lookup, nil).Run(context.Background(), []entity.RawUpload{csvUpload("po1001.csv", unfiCSV)})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	f := report.Failures[0]
	assert.ErrorIs(t, f, common.ErrDatabase)
	assert.Equal(t, constants.StageResolve, f.Stage)
	assert.Empty(t, report.Orders)
}

func TestBatchCancelledDiscardsDocuments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewBatch(newProcessor(t), newLookup(), nil).Run(ctx, []entity.RawUpload{
		csvUpload("a.csv", unfiCSV), csvUpload("b.csv", unfiCSV),
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Documents, 2)
	assert.Empty(t, report.Orders)
	for _, d := range report.Documents {
		require.NotNil(t, d.Failure)
		assert.ErrorIs(t, d.Failure, common.ErrCancelled)
	}
}

func TestBatchRecordsHistoryAndMetrics(t *testing.T) {
	ctx := context.Background()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	db, err := repository.Open(ctx, repository.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, nil) })
	require.NoError(t, db.Migrate(ctx))

	history := repository.NewConversionRepository(db, nil)
	reg := metrics.NewRegistry()
	b := NewBatch(newProcessor(t), newLookup(), nil, WithHistory(history), WithMetrics(reg))

	report, err := b.Run(ctx, []entity.RawUpload{
		csvUpload("po1001.csv", unfiCSV),
		{ID: uuid.New(), Name: "blank.pdf", Source: constants.SourceUNFIEast, Format: constants.FormatPDF, Bytes: blankPDF()},
	})
	require.NoError(t, err)

	recs, err := history.List(ctx, repository.ConversionFilter{BatchID: report.ID})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byName := map[string]entity.ConversionRecord{}
	for _, r := range recs {
		byName[r.Filename] = r
	}
	ok := byName["po1001.csv"]
	assert.Equal(t, constants.ConversionOK, ok.Status)
	assert.Equal(t, "PO1001", ok.OrderNumber)
	assert.Equal(t, 2, ok.LineItemsCount)

	failed := byName["blank.pdf"]
	assert.Equal(t, constants.ConversionFailed, failed.Status)
	assert.Equal(t, constants.StageRead, failed.Stage)
	assert.NotEmpty(t, failed.ErrorMessage)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Documents.WithLabelValues("unfi", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Failures.WithLabelValues("unfi_east", "read")))
}
