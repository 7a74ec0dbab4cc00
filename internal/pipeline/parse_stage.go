package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/extract"
	"github.com/joseph-ayodele/order-transformer/internal/normalize"
)

// ParseStage extracts the orders of a document and normalizes each one.
type ParseStage struct {
	Extractor  *extract.Extractor
	Normalizer *normalize.Normalizer
	Logger     *slog.Logger
}

func NewParseStage(ex *extract.Extractor, norm *normalize.Normalizer, logger *slog.Logger) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseStage{Extractor: ex, Normalizer: norm, Logger: logger}
}

// Run returns the canonical orders and the orders rejected by extraction or the
// normalizer. Any other error fails the whole document and discards every order.
func (s *ParseStage) Run(ctx context.Context, doc *entity.RawDocument, r normalize.Resolver) ([]entity.CanonicalOrder, []*common.Failure, error) {
	x, err := s.Extractor.ExtractAll(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	var orders []entity.CanonicalOrder
	rejected := x.Rejected
	for _, raw := range x.Orders {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		o, err := s.Normalizer.Normalize(ctx, r, doc.Source, doc.Name, raw)
		if err == nil {
			orders = append(orders, o)
			continue
		}
		if rejectsOrder(err) {
			f, _ := common.AsFailure(err)
			rejected = append(rejected, f.ForDocument(doc.ID.String(), doc.Name))
			continue
		}
		return nil, nil, err
	}
	return orders, rejected, nil
}

// rejectsOrder reports whether err concerns one order rather than the document.
func rejectsOrder(err error) bool {
	if _, ok := common.AsFailure(err); !ok {
		return false
	}
	return errors.Is(err, common.ErrUnresolvedIdentifier) || errors.Is(err, common.ErrMissingRequiredField)
}
