package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/reader"
)

// ReadStage decodes an upload into a RawDocument.
type ReadStage struct {
	Reader *reader.Reader
	Logger *slog.Logger
}

func NewReadStage(rd *reader.Reader, logger *slog.Logger) *ReadStage {
	if logger == nil {
		logger = slog.Default()
	}
	if rd == nil {
		rd = reader.New(logger)
	}
	return &ReadStage{Reader: rd, Logger: logger}
}

func (s *ReadStage) Run(ctx context.Context, up entity.RawUpload) (*entity.RawDocument, error) {
	doc, err := s.Reader.Read(ctx, up)
	if err != nil {
		return nil, err
	}
	s.Logger.Debug("processor.read.ok",
		"document", up.Name,
		"format", doc.Format,
		"encoding", doc.Encoding,
	)
	return doc, nil
}
