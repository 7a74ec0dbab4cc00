package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

// DefaultMaxBytes caps a single document read from disk.
const DefaultMaxBytes = 32 << 20

// FSIngestor reads uploads from the local filesystem. Identical content is
// handed out once per ingestor.
type FSIngestor struct {
	// Source pins every file to one partner; empty derives it from the path.
	Source   constants.Source
	MaxBytes int64

	logger *slog.Logger
	mu     sync.Mutex
	seen   map[string]struct{}
}

func NewFSIngestor(source constants.Source, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		Source:   source,
		MaxBytes: DefaultMaxBytes,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// LoadPath reads path into an upload. root only matters when Source is empty.
func (i *FSIngestor) LoadPath(ctx context.Context, root, path string) (entity.RawUpload, FileResult, error) {
	out := FileResult{Path: path}
	if err := ctx.Err(); err != nil {
		return entity.RawUpload{}, out, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.RawUpload{}, out, fmt.Errorf("abs path: %w", err)
	}
	out.Path = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	format, ok := constants.CanonicalFormat(ext)
	if ext == "" || !ok || !AllowedExt(ext) {
		i.logger.Warn("ingest.unsupported", "path", abs, "ext", ext)
		return entity.RawUpload{}, out, common.NewUnsupportedFormatError(ext).ForDocument("", filepath.Base(abs))
	}
	out.Format = string(format)

	source := i.Source
	if source == "" {
		if root != "" {
			if r, err := filepath.Abs(root); err == nil {
				root = r
			}
		}
		s, known := SourceFromPath(root, abs)
		if !known {
			return entity.RawUpload{}, out, common.NewAppError("INGEST_ERROR",
				fmt.Sprintf("cannot tell partner for %s (got %q)", abs, s), common.ErrInvalidInput)
		}
		source = s
	}
	out.Source = string(source)

	data, err := i.read(abs)
	if err != nil {
		return entity.RawUpload{}, out, err
	}

	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	i.mu.Lock()
	_, dup := i.seen[out.HashHex]
	if !dup {
		i.seen[out.HashHex] = struct{}{}
	}
	i.mu.Unlock()
	if dup {
		out.Deduplicated = true
		i.logger.Info("ingest.dedup", "path", abs, "hash", out.HashHex)
		return entity.RawUpload{}, out, nil
	}

	up := entity.RawUpload{
		ID:     uuid.New(),
		Name:   filepath.Base(abs),
		Source: source,
		Format: format,
		Bytes:  data,
	}
	out.UploadID = up.ID.String()
	i.logger.Debug("ingest.ok", "path", abs, "source", source, "format", format, "bytes", len(data))
	return up, out, nil
}

func (i *FSIngestor) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("ingest.close", "path", path, "error", err)
		}
	}(f)

	limit := i.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, common.NewAppError("INGEST_ERROR", fmt.Sprintf("%s exceeds %d bytes", path, limit), common.ErrInvalidInput)
	}
	return data, nil
}

// LoadDirectory walks root, skips hidden entries if requested,
// and calls LoadPath for each matching file. Returns uploads, per-file results and aggregate stats.
func (i *FSIngestor) LoadDirectory(
	ctx context.Context,
	root string,
	skipHidden bool,
) ([]entity.RawUpload, []FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var uploads []entity.RawUpload
	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		up, r, err := i.LoadPath(ctx, root, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
			return nil
		}
		uploads = append(uploads, up)
		return nil
	})
	if err != nil {
		return uploads, results, stats, fmt.Errorf("walk: %w", err)
	}
	i.logger.Info("ingest.directory", "root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)
	return uploads, results, stats, nil
}
