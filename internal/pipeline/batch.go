package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/metrics"
	"github.com/joseph-ayodele/order-transformer/internal/repository"
	"github.com/joseph-ayodele/order-transformer/internal/resolve"
)

const (
	DefaultWorkers         = 4
	DefaultDocumentTimeout = 30 * time.Second
)

// BatchReport aggregates a batch. Documents, Orders and Failures follow input order.
type BatchReport struct {
	ID                  uuid.UUID
	StartedAt           time.Time
	Duration            time.Duration
	Documents           []DocumentResult
	Orders              []entity.CanonicalOrder
	Failures            []*common.Failure
	UnresolvedByKeyType map[constants.KeyType]int
	Cache               resolve.Stats
}

// Records builds one conversion history row per document.
func (r *BatchReport) Records() []entity.ConversionRecord {
	out := make([]entity.ConversionRecord, 0, len(r.Documents))
	for i := range r.Documents {
		d := &r.Documents[i]
		rec := entity.ConversionRecord{
			BatchID:        r.ID,
			DocumentID:     d.DocumentID,
			Filename:       d.Document,
			Source:         d.Source,
			Status:         constants.ConversionOK,
			OrdersCount:    len(d.Orders),
			LineItemsCount: d.LineItems(),
			Unresolved:     d.Unresolved(),
			CreatedAt:      r.StartedAt,
		}
		numbers := make([]string, 0, len(d.Orders))
		for _, o := range d.Orders {
			numbers = append(numbers, o.OrderNumber)
		}
		rec.OrderNumber = strings.Join(numbers, ",")

		var msgs []string
		if d.Failure != nil {
			rec.Status = constants.ConversionFailed
			rec.Stage = d.Failure.Stage
			msgs = append(msgs, d.Failure.Error())
		}
		for _, f := range d.Rejected {
			if f != d.Failure {
				msgs = append(msgs, f.Error())
			}
		}
		rec.ErrorMessage = strings.Join(msgs, "; ")
		out = append(out, rec)
	}
	return out
}

// Batch converts many uploads in parallel with one resolver cache per run.
type Batch struct {
	proc    *Processor
	lookup  resolve.MappingLookup
	history repository.ConversionRepository
	metrics *metrics.Registry
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

type BatchOption func(*Batch)

func WithWorkers(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithDocumentTimeout(d time.Duration) BatchOption {
	return func(b *Batch) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithHistory persists a ConversionRecord per document after each run.
func WithHistory(repo repository.ConversionRepository) BatchOption {
	return func(b *Batch) { b.history = repo }
}

func WithMetrics(m *metrics.Registry) BatchOption {
	return func(b *Batch) { b.metrics = m }
}

func NewBatch(proc *Processor, lookup resolve.MappingLookup, logger *slog.Logger, opts ...BatchOption) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Batch{
		proc:    proc,
		lookup:  lookup,
		workers: DefaultWorkers,
		timeout: DefaultDocumentTimeout,
		logger:  logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run processes every upload. Document failures never abort the batch; the
// returned error is only the context's, and the report is complete either way.
func (b *Batch) Run(ctx context.Context, uploads []entity.RawUpload) (*BatchReport, error) {
	report := &BatchReport{ID: uuid.New(), StartedAt: time.Now().UTC()}
	cache := resolve.NewCache()
	resolver := resolve.New(b.lookup, cache, b.logger)
	ctx = common.WithBatchID(ctx, report.ID.String())

	b.logger.Info("batch.start", "batch_id", report.ID, "documents", len(uploads), "workers", b.workers)

	results := make([]DocumentResult, len(uploads))
	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, up := range uploads {
		i, up := i, up
		if up.ID == uuid.Nil {
			up.ID = uuid.New()
		}
		g.Go(func() error {
			dctx, cancel := common.WithTimeout(ctx, b.timeout)
			defer cancel()
			results[i] = b.proc.Process(dctx, up, resolver)
			return nil
		})
	}
	_ = g.Wait()

	report.Documents = results
	for i := range results {
		d := &results[i]
		report.Orders = append(report.Orders, d.Orders...)
		status := constants.ConversionOK
		if d.Failure != nil {
			status = constants.ConversionFailed
			report.Failures = append(report.Failures, d.Failure)
			b.metrics.ObserveFailure(string(d.Source), string(d.Failure.Stage))
			b.logger.Warn("batch.document.failed",
				"batch_id", report.ID,
				"document", d.Document,
				"stage", d.Failure.Stage,
				"error", d.Failure,
			)
		}
		for _, f := range d.Rejected {
			if f == d.Failure {
				continue
			}
			report.Failures = append(report.Failures, f)
			b.metrics.ObserveFailure(string(d.Source), string(f.Stage))
		}
		b.metrics.ObserveDocument(string(d.Source), string(status), len(d.Orders), d.LineItems(), d.Duration)
	}

	report.Cache = cache.Stats()
	report.UnresolvedByKeyType = report.Cache.Unresolved
	report.Duration = time.Since(report.StartedAt)

	unresolved := make(map[string]int, len(report.UnresolvedByKeyType))
	for kt, n := range report.UnresolvedByKeyType {
		unresolved[string(kt)] = n
	}
	b.metrics.ObserveBatch(report.Duration, report.Cache.Hits, report.Cache.Misses, unresolved)

	if b.history != nil {
		if err := b.history.Record(context.WithoutCancel(ctx), report.Records()); err != nil {
			b.logger.Error("batch.history.failed", "batch_id", report.ID, "error", err)
		}
	}

	b.logger.Info("batch.done",
		"batch_id", report.ID,
		"documents", len(results),
		"orders", len(report.Orders),
		"failures", len(report.Failures),
		"cache_hits", report.Cache.Hits,
		"cache_misses", report.Cache.Misses,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, ctx.Err()
}
