// Package server exposes document conversion over gRPC.
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/export"
	"github.com/joseph-ayodele/order-transformer/internal/pipeline"
	"github.com/joseph-ayodele/order-transformer/internal/repository"
)

const (
	maxBatchDocuments = 200
	defaultListLimit  = 50
	maxFilenameLength = 255
	maxUploadBytes    = 32 << 20
)

// ConversionService runs uploads through a pipeline.Batch.
type ConversionService struct {
	batch   *pipeline.Batch
	history repository.ConversionRepository
	export  *export.Service
	logger  *slog.Logger
}

// NewConversionService wires the service. history may be nil, in which case
// ListConversions reports Unavailable.
func NewConversionService(batch *pipeline.Batch, history repository.ConversionRepository, exp *export.Service, logger *slog.Logger) *ConversionService {
	if logger == nil {
		logger = slog.Default()
	}
	if exp == nil {
		exp = export.NewService(logger)
	}
	return &ConversionService{batch: batch, history: history, export: exp, logger: logger}
}

// Convert converts one document. Document failures are returned as gRPC status errors.
func (s *ConversionService) Convert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	output, err := outputFormat(req.AsMap())
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	up, err := uploadFrom(req.AsMap())
	if err != nil {
		s.logger.Error("convert request invalid", "error", err)
		return nil, common.InvalidArgumentError(err.Error())
	}

	s.logger.Info("convert.start", "request_id", common.RequestIDFromContext(ctx), "document", up.Name, "source", up.Source, "format", up.Format, "bytes", len(up.Bytes))
	report, err := s.batch.Run(ctx, []entity.RawUpload{up})
	if err != nil {
		return nil, status.FromContextError(err).Err()
	}
	if f := report.Documents[0].Failure; f != nil {
		return nil, common.GRPCStatus(f)
	}
	return s.response(ctx, report, output)
}

// ConvertBatch converts every document in "documents" and reports failures inline.
func (s *ConversionService) ConvertBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	m := req.AsMap()
	output, err := outputFormat(m)
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	docs, _ := m["documents"].([]any)
	if len(docs) == 0 {
		return nil, common.InvalidArgumentError("documents is required")
	}
	if len(docs) > maxBatchDocuments {
		return nil, common.InvalidArgumentErrorf("at most %d documents per batch", maxBatchDocuments)
	}

	uploads := make([]entity.RawUpload, 0, len(docs))
	for i, d := range docs {
		dm, ok := d.(map[string]any)
		if !ok {
			return nil, common.InvalidArgumentErrorf("documents[%d] must be an object", i)
		}
		up, err := uploadFrom(dm)
		if err != nil {
			return nil, common.InvalidArgumentErrorf("documents[%d]: %v", i, err)
		}
		uploads = append(uploads, up)
	}

	report, err := s.batch.Run(ctx, uploads)
	if err != nil {
		return nil, status.FromContextError(err).Err()
	}
	return s.response(ctx, report, output)
}

type listRequest struct {
	Limit   int    `validate:"gte=1,lte=1000"`
	BatchID string `validate:"omitempty,uuid"`
	Source  string
	Status  string `validate:"omitempty,oneof=OK FAILED"`
}

// ListConversions returns recent conversion history rows.
func (s *ConversionService) ListConversions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.history == nil {
		return nil, status.Error(codes.Unavailable, "conversion history is not configured")
	}
	m := req.AsMap()
	lr := listRequest{
		Limit:   defaultListLimit,
		BatchID: stringField(m, "batch_id"),
		Source:  stringField(m, "source"),
		Status:  strings.ToUpper(stringField(m, "status")),
	}
	if v, ok := m["limit"].(float64); ok && v != 0 {
		lr.Limit = int(v)
	}
	if err := common.ValidateStruct(lr); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}

	f := repository.ConversionFilter{Limit: lr.Limit, Status: constants.ConversionStatus(lr.Status)}
	if lr.BatchID != "" {
		f.BatchID = uuid.MustParse(lr.BatchID)
	}
	if lr.Source != "" {
		src, ok := constants.CanonicalSource(lr.Source)
		if !ok {
			return nil, common.InvalidArgumentErrorf("unknown source %q", lr.Source)
		}
		f.Source = src
	}

	recs, err := s.history.List(ctx, f)
	if err != nil {
		s.logger.Error("failed to list conversions", "error", err)
		return nil, common.InternalErrorf("list conversions: %v", err)
	}
	if len(recs) == 0 && lr.BatchID != "" {
		return nil, common.NotFoundError("no conversions recorded for batch " + lr.BatchID)
	}
	out, err := toValue(map[string]any{"conversions": recs})
	if err != nil {
		return nil, common.InternalErrorf("encode conversions: %v", err)
	}
	return out, nil
}

func (s *ConversionService) response(ctx context.Context, report *pipeline.BatchReport, output string) (*structpb.Struct, error) {
	failures := make([]map[string]any, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, failureMap(f))
	}
	body := map[string]any{
		"batch_id":    report.ID.String(),
		"orders":      report.Orders,
		"failures":    failures,
		"unresolved":  report.UnresolvedByKeyType,
		"duration_ms": report.Duration.Milliseconds(),
	}

	switch output {
	case "":
	case "xlsx":
		data, err := s.export.XLSX(report.Orders)
		if err != nil {
			return nil, common.GRPCStatus(err)
		}
		body["export_b64"] = base64.StdEncoding.EncodeToString(data)
	case "csv":
		var buf bytes.Buffer
		if err := s.export.WriteCSV(&buf, report.Orders); err != nil {
			return nil, common.GRPCStatus(err)
		}
		body["export_b64"] = base64.StdEncoding.EncodeToString(buf.Bytes())
	}

	out, err := toValue(body)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	s.logger.Info("convert.ok",
		"request_id", common.RequestIDFromContext(ctx),
		"batch_id", report.ID,
		"orders", len(report.Orders),
		"failures", len(report.Failures),
		"elapsed_ms", report.Duration.Milliseconds(),
	)
	return out, nil
}

func failureMap(f *common.Failure) map[string]any {
	attempts := make([]map[string]any, 0, len(f.Attempts))
	for _, a := range f.Attempts {
		attempts = append(attempts, map[string]any{"field": a.Field, "strategy": a.Strategy, "reason": a.Reason})
	}
	return map[string]any{
		"document_id": f.DocumentID,
		"document":    f.Document,
		"stage":       string(f.Stage),
		"kind":        f.Kind.Error(),
		"error":       f.Error(),
		"attempts":    attempts,
	}
}

// uploadFrom reads source, filename, content_b64 and an optional format.
func uploadFrom(m map[string]any) (entity.RawUpload, error) {
	name := stringField(m, "filename")
	rawSource := stringField(m, "source")
	content, err := base64.StdEncoding.DecodeString(stringField(m, "content_b64"))
	if err != nil {
		return entity.RawUpload{}, fmt.Errorf("content_b64: %w", err)
	}

	v := common.NewValidator().
		Field("filename", name, common.Required, common.MaxLength(maxFilenameLength)).
		Field("source", rawSource, common.Required).
		Field("content_b64", content, common.Required, common.MaxLength(maxUploadBytes))
	if v.HasErrors() {
		return entity.RawUpload{}, errors.New(v.ErrorMessage())
	}

	source, ok := constants.CanonicalSource(rawSource)
	if !ok {
		return entity.RawUpload{}, fmt.Errorf("unknown source %q", rawSource)
	}
	format := constants.Format(stringField(m, "format"))
	if format == "" {
		format = constants.Format(constants.NormalizeExt(filepath.Ext(name)))
	}
	return entity.RawUpload{ID: uuid.New(), Name: name, Source: source, Format: format, Bytes: content}, nil
}

// outputFormat reads the optional "output" field: "", "xlsx" or "csv".
func outputFormat(m map[string]any) (string, error) {
	output := strings.ToLower(stringField(m, "output"))
	v := common.NewValidator().Field("output", output, common.OneOf("", "xlsx", "csv"))
	if v.HasErrors() {
		return "", errors.New(v.ErrorMessage())
	}
	return output, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// toValue round-trips v through JSON so entity tags and decimal strings carry over.
func toValue(v map[string]any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return structpb.NewStruct(generic)
}
