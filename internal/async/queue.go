package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one conversion batch. Uploads in a job share an identifier cache.
type Job struct {
	Uploads     []entity.RawUpload
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
