package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/metrics"
	"github.com/joseph-ayodele/order-transformer/internal/pipeline"
)

// BatchRunner converts a set of uploads.
type BatchRunner interface {
	Run(ctx context.Context, uploads []entity.RawUpload) (*pipeline.BatchReport, error)
}

// ResultFunc receives every finished job. Called from worker goroutines.
type ResultFunc func(ctx context.Context, job Job, report *pipeline.BatchReport, err error)

type ProcessorQueue struct {
	runner   BatchRunner
	logger   *slog.Logger
	metrics  *metrics.Registry
	onResult ResultFunc
	workers  int
	timeout  time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithMetrics(m *metrics.Registry) Option {
	return func(q *ProcessorQueue) { q.metrics = m }
}
func WithResultFunc(fn ResultFunc) Option {
	return func(q *ProcessorQueue) { q.onResult = fn }
}

func NewProcessorQueue(runner BatchRunner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		runner:  runner,
		logger:  logger,
		workers: 2,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.start", "worker_id", workerID)

				for job := range q.ch {
					q.metrics.SetQueueDepth(len(q.ch))
					q.run(workerID, job)
				}

				q.logger.Debug("queue.worker.stop", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	report, err := q.runner.Run(ctx, job.Uploads)
	switch {
	case err != nil:
		q.logger.Error("queue.job.failed", "worker_id", workerID, "trace_id", job.TraceID, "documents", len(job.Uploads), "error", err)
	case report != nil:
		q.logger.Info("queue.job.ok", "worker_id", workerID, "trace_id", job.TraceID, "batch_id", report.ID,
			"orders", len(report.Orders), "failures", len(report.Failures), "waited", time.Since(job.SubmittedAt))
	}
	if q.onResult != nil {
		q.onResult(ctx, job, report, err)
	}
}

// Enqueue blocks while the queue is full until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "trace_id", job.TraceID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.full", "trace_id", job.TraceID, "capacity", cap(q.ch))
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.metrics.SetQueueDepth(len(q.ch))
	q.logger.Debug("queue.enqueued", "trace_id", job.TraceID, "documents", len(job.Uploads))
	return nil
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.done")
	}
}
