package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/extract"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
	"github.com/joseph-ayodele/order-transformer/internal/metrics"
	"github.com/joseph-ayodele/order-transformer/internal/normalize"
	"github.com/joseph-ayodele/order-transformer/internal/pipeline"
	"github.com/joseph-ayodele/order-transformer/internal/reader"
	"github.com/joseph-ayodele/order-transformer/internal/repository"
)

type mapLookup map[string]string

func (m mapLookup) ActiveMappings(_ context.Context, source constants.Source, keyTypes []constants.KeyType) ([]entity.MappingEntry, error) {
	var out []entity.MappingEntry
	for _, kt := range keyTypes {
		if kt != constants.KeyVendorItem {
			continue
		}
		for raw, canonical := range m {
			out = append(out, entity.MappingEntry{ID: int64(len(out) + 1), Source: source, KeyType: kt, RawValue: raw, CanonicalValue: canonical, Priority: 100, Active: true})
		}
	}
	return out, nil
}

const unfiCSV = `Order Number,Order Date,Item Number,Description,Qty,Unit Price,Discount %
PO1001,2025-01-05,ITEM-A,Apples,2,10.00,
PO1001,2025-01-05,ITEM-B,Bananas,1,5.00,10
`

const unmappedCSV = `Order Number,Order Date,Item Number,Qty,Unit Price
PO2002,2025-01-06,ITEM-X,1,1.00
`

func startServer(t *testing.T) (*ConversionClient, *grpc.ClientConn) {
	t.Helper()
	ctx := context.Background()

	set, err := layout.Default()
	require.NoError(t, err)
	proc := pipeline.NewProcessor(nil,
		pipeline.NewReadStage(reader.New(nil), nil),
		pipeline.NewParseStage(extract.New(set, nil), normalize.New(set, nil), nil),
	)

	name := strings.NewReplacer("/", "_").Replace(t.Name())
	db, err := repository.Open(ctx, repository.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, nil) })
	require.NoError(t, db.Migrate(ctx))
	history := repository.NewConversionRepository(db, nil)

	batch := pipeline.NewBatch(proc, mapLookup{"ITEM-A": "XO-100", "ITEM-B": "XO-200"}, nil, pipeline.WithHistory(history))
	srv, _ := NewGRPCServer(NewConversionService(batch, history, nil, nil), nil)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewConversionClient(conn), conn
}

func document(t *testing.T, name, source, body string) map[string]any {
	t.Helper()
	return map[string]any{
		"filename":    name,
		"source":      source,
		"content_b64": base64.StdEncoding.EncodeToString([]byte(body)),
	}
}

func request(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestConvert(t *testing.T) {
	client, _ := startServer(t)

	req := document(t, "po1001.csv", "UNFI", unfiCSV)
	req["output"] = "csv"
	resp, err := client.Convert(context.Background(), request(t, req))
	require.NoError(t, err)

	m := resp.AsMap()
	orders, _ := m["orders"].([]any)
	require.Len(t, orders, 1)
	order := orders[0].(map[string]any)
	assert.Equal(t, "PO1001", order["order_number"])
	items := order["line_items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "4.5", items[1].(map[string]any)["line_total"])

	csvData, err := base64.StdEncoding.DecodeString(m["export_b64"].(string))
	require.NoError(t, err)
	assert.Contains(t, string(csvData), "ThirdPartyRefNo")
	assert.Contains(t, string(csvData), "XO-200")
}

func TestConvertFailures(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	_, err := client.Convert(ctx, request(t, map[string]any{"source": "unfi"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Convert(ctx, request(t, document(t, "po.csv", "nobody", unfiCSV)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Convert(ctx, request(t, document(t, "po.doc", "unfi", unfiCSV)))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	bad := document(t, "po.csv", "unfi", unfiCSV)
	bad["output"] = "pdf"
	_, err = client.Convert(ctx, request(t, bad))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Convert(ctx, request(t, document(t, "unmapped.csv", "unfi", unmappedCSV)))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "unresolved")
}

func TestConvertBatchAndHistory(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	resp, err := client.ConvertBatch(ctx, request(t, map[string]any{
		"documents": []any{
			document(t, "po1001.csv", "unfi", unfiCSV),
			document(t, "unmapped.csv", "unfi", unmappedCSV),
		},
	}))
	require.NoError(t, err)
	m := resp.AsMap()
	assert.Len(t, m["orders"], 1)
	failures := m["failures"].([]any)
	require.Len(t, failures, 1)
	f := failures[0].(map[string]any)
	assert.Equal(t, "unmapped.csv", f["document"])
	assert.Equal(t, "normalize", f["stage"])

	list, err := client.ListConversions(ctx, request(t, map[string]any{"batch_id": m["batch_id"]}))
	require.NoError(t, err)
	assert.Len(t, list.AsMap()["conversions"], 2)

	_, err = client.ConvertBatch(ctx, request(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ListConversions(ctx, request(t, map[string]any{"status": "maybe"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = client.ListConversions(ctx, request(t, map[string]any{"batch_id": "not-a-uuid"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = client.ListConversions(ctx, request(t, map[string]any{"source": "acme"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = client.ListConversions(ctx, request(t, map[string]any{"batch_id": "7d1f3a52-9a5e-4c52-8a34-0b6f0d3c2e11"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.ConvertBatch(ctx, request(t, map[string]any{"documents": []any{"po.csv"}}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "documents[0]")
}

func TestHealth(t *testing.T) {
	_, conn := startServer(t)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestHTTPHandler(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.ObserveFailure("kehe", "read")

	var fail error
	h := NewHTTPHandler(reg, func(context.Context) error { return fail }, nil)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/healthz").Code)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)

	m := get("/metrics")
	assert.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, m.Body.String(), "order_failures_total")

	fail = errors.New("db down")
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").Code)
	assert.Equal(t, http.StatusNotFound, get("/nope").Code)
}
