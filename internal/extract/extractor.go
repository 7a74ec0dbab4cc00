package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
)

// Extractor dispatches documents to the family extractor named by their source layout.
type Extractor struct {
	layouts *layout.Set
	logger  *slog.Logger
}

func New(layouts *layout.Set, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{layouts: layouts, logger: logger}
}

// Extraction is what a document yielded: the orders that passed and the ones rejected.
type Extraction struct {
	Orders   []entity.RawOrder
	Rejected []*common.Failure
}

// Extract returns the orders in doc that passed extraction.
func (e *Extractor) Extract(ctx context.Context, doc *entity.RawDocument) ([]entity.RawOrder, error) {
	x, err := e.ExtractAll(ctx, doc)
	if err != nil {
		return nil, err
	}
	return x.Orders, nil
}

// ExtractAll extracts every order in doc. An order without an order number or
// acceptable line items is rejected on its own; the document fails only when
// no order survives.
func (e *Extractor) ExtractAll(ctx context.Context, doc *entity.RawDocument) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	l, ok := e.layouts.For(doc.Source)
	if !ok {
		return Extraction{}, e.fail(doc, &common.Failure{
			Kind:   common.ErrUnsupportedFormat,
			Stage:  constants.StageExtract,
			Detail: fmt.Sprintf("source %q has no layout", doc.Source),
		})
	}
	if !l.Accepts(doc.Format) {
		return Extraction{}, e.fail(doc, &common.Failure{
			Kind:   common.ErrUnsupportedFormat,
			Stage:  constants.StageExtract,
			Detail: fmt.Sprintf("source %q does not send %s documents", doc.Source, doc.Format),
		})
	}

	var (
		x   Extraction
		err error
	)
	switch l.Family {
	case layout.FamilySPSCSV:
		x.Orders, x.Rejected, err = extractSPS(doc, l)
	case layout.FamilyPositionalPDF:
		x.Orders, x.Rejected, err = extractPositional(doc, l)
	case layout.FamilyLabeledHTML:
		x.Orders, x.Rejected, err = extractLabeledHTML(doc, l)
	case layout.FamilyTabular:
		x.Orders, x.Rejected, err = extractTabular(doc, l)
	default:
		err = &common.Failure{Kind: common.ErrUnsupportedFormat, Stage: constants.StageExtract, Detail: "family " + string(l.Family)}
	}
	if err != nil {
		return Extraction{}, e.fail(doc, err)
	}

	for _, f := range x.Rejected {
		f.ForDocument(doc.ID.String(), doc.Name)
		e.logger.Warn("extract.order.rejected", "document", doc.Name, "source", doc.Source, "error", f)
	}
	for _, o := range x.Orders {
		e.logger.Debug("extract.order",
			"document", doc.Name,
			"order_number", o.Header.OrderNumber,
			"confidence", o.Header.Confidence,
			"items", len(o.Items),
		)
	}
	return x, nil
}

func (e *Extractor) fail(doc *entity.RawDocument, err error) error {
	if f, ok := common.AsFailure(err); ok {
		f.ForDocument(doc.ID.String(), doc.Name)
	}
	e.logger.Warn("extract.failed", "document", doc.Name, "source", doc.Source, "error", err)
	return err
}

// headerPlan holds the strategy chains for one order header.
type headerPlan struct {
	orderNumber []Strategy[string]
	customer    []Strategy[string]
	store       []Strategy[string]
	dates       map[entity.DateRole][]Strategy[time.Time]
}

func (p headerPlan) run(doc *entity.RawDocument) entity.RawOrderHeader {
	h := entity.RawOrderHeader{FieldConfidence: make(map[string]constants.Confidence)}

	text := func(field string, chain []Strategy[string]) string {
		if len(chain) == 0 {
			return ""
		}
		o := RunChain(field, doc, chain)
		h.Attempts = append(h.Attempts, o.Attempts...)
		if !o.Found {
			return ""
		}
		h.FieldConfidence[field] = o.Confidence
		return strings.TrimSpace(o.Value)
	}
	h.OrderNumber = text(layout.FieldOrderNumber, p.orderNumber)
	h.RawCustomerID = text(layout.FieldCustomer, p.customer)
	h.RawStoreID = text(layout.FieldStore, p.store)

	for _, role := range layout.DateRoles {
		chain := p.dates[role]
		if len(chain) == 0 {
			continue
		}
		field := layout.DateField(role)
		o := RunChain(field, doc, chain)
		h.Attempts = append(h.Attempts, o.Attempts...)
		if o.Found {
			h.SetDate(role, o.Value)
			h.FieldConfidence[field] = o.Confidence
		}
	}

	h.Confidence = constants.ConfidenceFallback
	if c, ok := h.FieldConfidence[layout.FieldOrderNumber]; ok {
		h.Confidence = c
	}
	for _, c := range h.FieldConfidence {
		if c.Rank() < h.Confidence.Rank() {
			h.Confidence = c
		}
	}
	return h
}

// finalize enforces the order-level extraction rules and numbers the lines.
func finalize(h entity.RawOrderHeader, items []entity.RawLineItem, itemAttempts []common.StrategyAttempt) (entity.RawOrder, error) {
	if h.OrderNumber == "" {
		return entity.RawOrder{}, common.NewMissingRequiredFieldError(layout.FieldOrderNumber, constants.StageExtract, h.Attempts)
	}
	if len(items) == 0 {
		attempts := append(append([]common.StrategyAttempt(nil), itemAttempts...), common.StrategyAttempt{
			Field: "order", Strategy: "order_number", Reason: h.OrderNumber,
		})
		return entity.RawOrder{}, common.NewNoLineItemsFoundError(attempts)
	}
	for i := range items {
		items[i].LineNumber = i + 1
	}
	return entity.RawOrder{Header: h, Items: items}, nil
}

// orderSet collects the outcome of each order found in one document.
type orderSet struct {
	orders   []entity.RawOrder
	rejected []*common.Failure
	err      error
}

func (s *orderSet) add(o entity.RawOrder, err error) {
	if err == nil {
		s.orders = append(s.orders, o)
		return
	}
	if f, ok := common.AsFailure(err); ok {
		s.rejected = append(s.rejected, f)
		return
	}
	if s.err == nil {
		s.err = err
	}
}

// result fails with the first rejection when nothing passed.
func (s *orderSet) result() ([]entity.RawOrder, []*common.Failure, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	if len(s.orders) == 0 {
		if len(s.rejected) > 0 {
			return nil, nil, s.rejected[0]
		}
		return nil, nil, common.NewNoLineItemsFoundError([]common.StrategyAttempt{{
			Field: "line_items", Strategy: "item_rows", Reason: "no rows below the header",
		}})
	}
	return s.orders, s.rejected, nil
}

// patternStrategies runs layout regexes over the document text.
func patternStrategies(pats []layout.Pattern) []Strategy[string] {
	out := make([]Strategy[string], 0, len(pats))
	for i := range pats {
		p := &pats[i]
		out = append(out, Strategy[string]{
			Name:       p.Name,
			Confidence: p.Confidence,
			Fn: func(doc *entity.RawDocument) (string, error) {
				m := p.Re().FindStringSubmatch(doc.Text())
				if m == nil {
					return "", declined("no match")
				}
				return p.Format(m[1]), nil
			},
		})
	}
	return out
}

var reFilenameNumber = regexp.MustCompile(`(\d{5,})`)

// filenameOrderNumber is the last resort for order numbers: a long digit run in the upload name.
func filenameOrderNumber() Strategy[string] {
	return Strategy[string]{
		Name:       "filename_number",
		Confidence: constants.ConfidenceFallback,
		Fn: func(doc *entity.RawDocument) (string, error) {
			base := strings.TrimSuffix(filepath.Base(doc.Name), filepath.Ext(doc.Name))
			m := reFilenameNumber.FindStringSubmatch(base)
			if m == nil {
				return "", declined("no digit run in %q", base)
			}
			return m[1], nil
		},
	}
}

func dateStrategies(in []Strategy[string]) []Strategy[time.Time] {
	return mapStrategies(in, ParseDate)
}
