package ingest

import (
	"context"

	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

// FileResult is the per-file ingest outcome.
type FileResult struct {
	Path         string
	UploadID     string
	Source       string
	Format       string
	HashHex      string
	Deduplicated bool
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor turns files on disk into uploads for the conversion pipeline.
type Ingestor interface {
	// LoadPath reads a single file.
	LoadPath(ctx context.Context, root, path string) (entity.RawUpload, FileResult, error)
	// LoadDirectory reads all matching files under root. Deduplicated files yield no upload.
	LoadDirectory(ctx context.Context, root string, skipHidden bool) ([]entity.RawUpload, []FileResult, DirStats, error)
}
