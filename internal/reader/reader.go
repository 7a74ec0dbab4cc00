package reader

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

// DefaultEncodings is tried in order for text formats.
var DefaultEncodings = []string{EncodingUTF8, EncodingWindows1252, EncodingLatin1}

// Reader turns uploaded bytes into a RawDocument. It holds no mutable state and is safe for concurrent use.
type Reader struct {
	encodings []string
	logger    *slog.Logger
}

type Option func(*Reader)

// WithEncodings replaces the ordered encoding candidates. Unknown names are ignored at decode time.
func WithEncodings(names ...string) Option {
	return func(r *Reader) {
		if len(names) > 0 {
			r.encodings = append([]string(nil), names...)
		}
	}
}

func New(logger *slog.Logger, opts ...Option) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reader{encodings: DefaultEncodings, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Read dispatches on the declared format.
func (r *Reader) Read(ctx context.Context, up entity.RawUpload) (*entity.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	format, ok := constants.CanonicalFormat(string(up.Format))
	if !ok {
		r.logger.Warn("reader.unsupported", "document", up.Name, "format", up.Format)
		return nil, common.NewUnsupportedFormatError(string(up.Format)).ForDocument(up.ID.String(), up.Name)
	}

	doc := &entity.RawDocument{
		ID:     up.ID,
		Name:   up.Name,
		Source: up.Source,
		Format: format,
	}

	var err error
	switch format {
	case constants.FormatPDF:
		err = r.readPDF(doc, up.Bytes)
	case constants.FormatHTML:
		err = r.readHTML(doc, up.Bytes)
	case constants.FormatCSV:
		err = r.readCSV(doc, up.Bytes)
	case constants.FormatXLSX:
		err = r.readXLSX(doc, up.Bytes)
	}
	if err != nil {
		if f, ok := common.AsFailure(err); ok {
			f.ForDocument(up.ID.String(), up.Name)
		}
		r.logger.Warn("reader.failed", "document", up.Name, "format", format, "error", err)
		return nil, err
	}

	r.logger.Debug("reader.ok",
		"document", up.Name,
		"format", format,
		"encoding", doc.Encoding,
		"lines", len(doc.Lines),
		"rows", len(doc.Rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}
