// Package pipeline runs uploads through read, extract, resolve and normalize,
// one document at a time or as a bounded parallel batch.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/normalize"
)

// DocumentResult is the outcome of one upload. Failure is set when the
// document produced no orders; Rejected lists orders dropped by the normalizer.
type DocumentResult struct {
	DocumentID uuid.UUID
	Document   string
	Source     constants.Source
	Format     constants.Format
	Orders     []entity.CanonicalOrder
	Rejected   []*common.Failure
	Failure    *common.Failure
	Duration   time.Duration
}

func (r *DocumentResult) OK() bool { return r.Failure == nil }

func (r *DocumentResult) LineItems() int {
	n := 0
	for i := range r.Orders {
		n += len(r.Orders[i].LineItems)
	}
	return n
}

func (r *DocumentResult) Unresolved() int {
	n := 0
	for i := range r.Orders {
		n += r.Orders[i].UnresolvedCount()
	}
	return n
}

// Processor coordinates the read stage then the parse stage.
type Processor struct {
	logger *slog.Logger
	read   *ReadStage
	parse  *ParseStage
}

func NewProcessor(logger *slog.Logger, read *ReadStage, parse *ParseStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, read: read, parse: parse}
}

// Process converts one upload. Cancellation is checked between stages and
// discards whatever the document produced so far.
func (p *Processor) Process(ctx context.Context, up entity.RawUpload, r normalize.Resolver) (res DocumentResult) {
	start := time.Now()
	res = DocumentResult{DocumentID: up.ID, Document: up.Name, Source: up.Source, Format: up.Format}
	defer func() { res.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		res.Failure = failureOf(err, constants.StageRead, up)
		return res
	}
	doc, err := p.read.Run(ctx, up)
	if err != nil {
		p.logger.Error("processor.read.failed", "batch_id", common.BatchIDFromContext(ctx), "document", up.Name, "error", err)
		res.Failure = failureOf(err, constants.StageRead, up)
		return res
	}
	res.Format = doc.Format

	if err := ctx.Err(); err != nil {
		res.Failure = failureOf(err, constants.StageExtract, up)
		return res
	}
	orders, rejected, err := p.parse.Run(ctx, doc, r)
	if err != nil {
		p.logger.Error("processor.parse.failed", "batch_id", common.BatchIDFromContext(ctx), "document", up.Name, "error", err)
		res.Failure = failureOf(err, constants.StageExtract, up)
		return res
	}
	res.Rejected = rejected
	if len(orders) == 0 && len(rejected) > 0 {
		res.Failure = rejected[0]
		return res
	}
	res.Orders = orders

	p.logger.Debug("processor.ok",
		"batch_id", common.BatchIDFromContext(ctx),
		"document", up.Name,
		"orders", len(orders),
		"rejected", len(rejected),
		"line_items", res.LineItems(),
	)
	return res
}

// failureOf turns any error into a Failure stamped with the document identity.
// Errors not raised by a stage are attributed to stage.
func failureOf(err error, stage constants.Stage, up entity.RawUpload) *common.Failure {
	if f, ok := common.AsFailure(err); ok {
		return f.ForDocument(up.ID.String(), up.Name)
	}
	kind := common.ErrInternal
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = common.ErrCancelled
	}
	f := &common.Failure{Kind: kind, Stage: stage, Cause: err}
	return f.ForDocument(up.ID.String(), up.Name)
}
