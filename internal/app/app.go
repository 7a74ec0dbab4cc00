// Package app wires the conversion stack from configuration.
package app

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/export"
	"github.com/joseph-ayodele/order-transformer/internal/extract"
	"github.com/joseph-ayodele/order-transformer/internal/layout"
	"github.com/joseph-ayodele/order-transformer/internal/metrics"
	"github.com/joseph-ayodele/order-transformer/internal/normalize"
	"github.com/joseph-ayodele/order-transformer/internal/pipeline"
	"github.com/joseph-ayodele/order-transformer/internal/reader"
	repo "github.com/joseph-ayodele/order-transformer/internal/repository"
)

// App holds the long-lived components shared by the binaries.
type App struct {
	DB       *repo.DB
	Mappings repo.MappingRepository
	History  repo.ConversionRepository
	Layouts  *layout.Set
	Metrics  *metrics.Registry
	Batch    *pipeline.Batch
	Export   *export.Service

	logger *slog.Logger
}

// Options override configuration for a single run.
type Options struct {
	// InMemory forces an in-memory SQLite database, migrated on open.
	InMemory bool
	Workers  int
	Metrics  *metrics.Registry
}

// DBConfig maps the loaded configuration onto repository settings.
func DBConfig(cfg *common.Config, inMemory bool) repo.Config {
	c := repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}
	if inMemory {
		c.Driver, c.DSN = "sqlite", repo.DefaultSQLiteDSN
	}
	return c
}

// New opens the database and builds the pipeline. Callers own Close.
func New(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.InMemory {
		cfg.Database.Driver = "sqlite"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	layouts, err := layout.Load(cfg.Pipeline.LayoutsFile)
	if err != nil {
		return nil, err
	}

	db, err := repo.Open(ctx, DBConfig(cfg, opts.InMemory), logger)
	if err != nil {
		return nil, common.WrapError(err, "open database")
	}
	if cfg.Database.Driver == "sqlite" {
		if err := db.Migrate(ctx); err != nil {
			repo.Close(db, logger)
			return nil, common.WrapError(err, "migrate")
		}
	}

	a := &App{
		DB:       db,
		Mappings: repo.NewMappingRepository(db, logger),
		History:  repo.NewConversionRepository(db, logger),
		Layouts:  layouts,
		Metrics:  opts.Metrics,
		Export:   export.NewService(logger),
		logger:   logger,
	}

	rd := reader.New(logger, reader.WithEncodings(cfg.Pipeline.Encodings...))
	norm := normalize.New(layouts, logger, normalize.WithShipOffsetDays(cfg.Pipeline.ShipOffsetDays))
	proc := pipeline.NewProcessor(logger,
		pipeline.NewReadStage(rd, logger),
		pipeline.NewParseStage(extract.New(layouts, logger), norm, logger),
	)

	workers := cfg.Pipeline.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	batchOpts := []pipeline.BatchOption{
		pipeline.WithWorkers(workers),
		pipeline.WithDocumentTimeout(cfg.Pipeline.DocumentTimeout),
		pipeline.WithMetrics(opts.Metrics),
	}
	if cfg.Pipeline.RecordHistory {
		batchOpts = append(batchOpts, pipeline.WithHistory(a.History))
	}
	a.Batch = pipeline.NewBatch(proc, a.Mappings, logger, batchOpts...)

	logger.Info("app.ready", "driver", db.Dialect(), "workers", workers, "sources", len(layouts.Sources()))
	return a, nil
}

func (a *App) Close() {
	repo.Close(a.DB, a.logger)
}
