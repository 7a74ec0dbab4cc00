package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-transformer/internal/app"
	"github.com/joseph-ayodele/order-transformer/internal/async"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/ingest"
	"github.com/joseph-ayodele/order-transformer/internal/metrics"
	"github.com/joseph-ayodele/order-transformer/internal/pipeline"
	repo "github.com/joseph-ayodele/order-transformer/internal/repository"
	"github.com/joseph-ayodele/order-transformer/internal/server"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("orderd exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := common.LoadConfig()
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	a, err := app.New(ctx, cfg, app.Options{Metrics: reg}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := repo.HealthCheck(ctx, a.DB, 5*time.Second, logger); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}

	svc := server.NewConversionService(a.Batch, a.History, a.Export, logger)
	grpcServer, hs := server.NewGRPCServer(svc, logger)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	go func() {
		logger.Info("gRPC serving", "addr", addr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve", "error", err)
			stop()
		}
	}()

	var httpServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		ready := func(ctx context.Context) error { return repo.HealthCheck(ctx, a.DB, time.Second, logger) }
		httpServer = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           server.NewHTTPHandler(reg, ready, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics serving", "addr", cfg.Server.MetricsAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics serve", "error", err)
			}
		}()
	}

	var queue *async.ProcessorQueue
	if cfg.Pipeline.InboxDir != "" {
		queue, err = startInbox(ctx, cfg, a, reg, logger)
		if err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")
	hs.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	stopped := make(chan struct{})
	go func() { grpcServer.GracefulStop(); close(stopped) }()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	logger.Info("stopped")
	return nil
}

// startInbox converts documents dropped under <inbox>/<source>/ and writes one
// export per batch to the outbox.
func startInbox(ctx context.Context, cfg *common.Config, a *app.App, reg *metrics.Registry, logger *slog.Logger) (*async.ProcessorQueue, error) {
	inbox := cfg.Pipeline.InboxDir
	outbox := cfg.Pipeline.OutboxDir
	if outbox == "" {
		outbox = filepath.Join(filepath.Dir(filepath.Clean(inbox)), "outbox")
	}
	if err := os.MkdirAll(outbox, 0o755); err != nil {
		return nil, fmt.Errorf("outbox: %w", err)
	}

	queue := async.NewProcessorQueue(a.Batch, logger,
		async.WithWorkers(2),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.DocumentTimeout*4),
		async.WithMetrics(reg),
		async.WithResultFunc(func(_ context.Context, job async.Job, report *pipeline.BatchReport, err error) {
			if err != nil || report == nil || len(report.Orders) == 0 {
				return
			}
			name := strings.TrimSuffix(job.Uploads[0].Name, filepath.Ext(job.Uploads[0].Name))
			out := filepath.Join(outbox, fmt.Sprintf("%s-%s.xlsx", name, report.ID.String()[:8]))
			if err := a.Export.WriteFile(out, report.Orders); err != nil {
				logger.Error("inbox.export.failed", "path", out, "error", err)
				return
			}
			logger.Info("inbox.export.ok", "path", out, "orders", len(report.Orders))
		}),
	)

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{inbox},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    500 * time.Millisecond,
		Buffer:      cfg.Pipeline.QueueSize,
		Logger:      logger,
	})
	if err != nil {
		queue.Shutdown(ctx)
		return nil, err
	}

	ing := ingest.NewFSIngestor("", logger)
	go func() {
		for {
			select {
			case path, ok := <-events:
				if !ok {
					return
				}
				up, res, err := ing.LoadPath(ctx, inbox, path)
				if err != nil {
					logger.Warn("inbox.skip", "path", path, "error", err)
					continue
				}
				if res.Deduplicated {
					continue
				}
				job := async.Job{Uploads: []entity.RawUpload{up}, TraceID: uuid.NewString()}
				if err := queue.Enqueue(ctx, job); err != nil {
					logger.Warn("inbox.enqueue.failed", "path", path, "error", err)
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("inbox.watch.error", "error", err)
			}
		}
	}()
	logger.Info("inbox watching", "inbox", inbox, "outbox", outbox)
	return queue, nil
}
