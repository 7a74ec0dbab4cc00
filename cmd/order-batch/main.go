package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/app"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
	"github.com/joseph-ayodele/order-transformer/internal/ingest"
	repo "github.com/joseph-ayodele/order-transformer/internal/repository"
	"github.com/joseph-ayodele/order-transformer/internal/seed"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "order-batch",
		Short:         "Convert partner purchase orders into Xoro import rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.AddCommand(newConvertCmd(), newLoadMappingsCmd(), newMigrateCmd())
	return root
}

func newConvertCmd() *cobra.Command {
	var (
		source   string
		in       string
		out      string
		mappings string
		inmem    bool
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a file or a directory of partner documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := slog.Default()

			var src constants.Source
			if source != "" {
				s, ok := constants.CanonicalSource(source)
				if !ok {
					return fmt.Errorf("unknown --source %q (known: %v)", source, constants.SourcesAsStringSlice())
				}
				src = s
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(filepath.Clean(in)), "orders.xlsx")
			}

			a, err := app.New(ctx, common.LoadConfig(), app.Options{InMemory: inmem, Workers: workers}, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if mappings != "" {
				if err := loadMappings(ctx, a.Mappings, mappings, seed.Defaults{Source: src}, false); err != nil {
					return err
				}
			}

			uploads, err := collect(ctx, in, src, logger)
			if err != nil {
				return err
			}
			if len(uploads) == 0 {
				return fmt.Errorf("no order documents found under %s", in)
			}

			report, err := a.Batch.Run(ctx, uploads)
			if err != nil {
				return err
			}
			for _, f := range report.Failures {
				printError("FAILED %s\n", f.Error())
			}
			if len(report.Orders) > 0 {
				if err := a.Export.WriteFile(out, report.Orders); err != nil {
					return err
				}
			}
			fmt.Printf("batch %s: %d documents, %d orders, %d failures, cache hits=%d misses=%d -> %s\n",
				report.ID, len(report.Documents), len(report.Orders), len(report.Failures),
				report.Cache.Hits, report.Cache.Misses, out)
			if len(report.Orders) == 0 {
				return fmt.Errorf("no orders converted")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "partner for every document (default: directory name under --in)")
	cmd.Flags().StringVar(&in, "in", "", "document file or directory (required)")
	cmd.Flags().StringVar(&out, "out", "", "output .xlsx or .csv (default: orders.xlsx next to --in)")
	cmd.Flags().StringVar(&mappings, "mappings", "", "mapping file to load before converting")
	cmd.Flags().BoolVar(&inmem, "inmem", false, "use in-memory SQLite database")
	cmd.Flags().IntVar(&workers, "workers", 0, "documents converted in parallel (default: PIPELINE_WORKERS)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func collect(ctx context.Context, in string, src constants.Source, logger *slog.Logger) ([]entity.RawUpload, error) {
	fi, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	ing := ingest.NewFSIngestor(src, logger)
	if !fi.IsDir() {
		up, _, err := ing.LoadPath(ctx, "", in)
		if err != nil {
			return nil, err
		}
		return []entity.RawUpload{up}, nil
	}
	uploads, results, stats, err := ing.LoadDirectory(ctx, in, true)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.Err != "" {
			printError("SKIPPED %s: %s\n", r.Path, r.Err)
		}
	}
	logger.Info("collected documents", "dir", in, "matched", stats.Matched, "deduplicated", stats.Deduplicated, "failed", stats.Failed)
	return uploads, nil
}

func newLoadMappingsCmd() *cobra.Command {
	var (
		file     string
		source   string
		keyType  string
		priority int
		replace  bool
	)
	cmd := &cobra.Command{
		Use:   "load-mappings",
		Short: "Seed the identifier mapping table from a .csv or .xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			d := seed.Defaults{Priority: &priority}
			if source != "" {
				s, ok := constants.CanonicalSource(source)
				if !ok {
					return fmt.Errorf("unknown --source %q", source)
				}
				d.Source = s
			}
			if keyType != "" {
				kt, ok := constants.ParseKeyType(keyType)
				if !ok {
					return fmt.Errorf("unknown --key-type %q (known: %v)", keyType, constants.KeyTypesAsStringSlice())
				}
				d.KeyType = kt
			}
			if replace && d.Source == "" {
				return fmt.Errorf("--replace needs --source")
			}

			cfg := common.LoadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			db, err := repo.Open(ctx, app.DBConfig(cfg, false), slog.Default())
			if err != nil {
				return err
			}
			defer repo.Close(db, slog.Default())
			return loadMappings(ctx, repo.NewMappingRepository(db, slog.Default()), file, d, replace)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "mapping file (required)")
	cmd.Flags().StringVar(&source, "source", "", "partner for rows without a source column")
	cmd.Flags().StringVar(&keyType, "key-type", "", "key type for rows without a key_type column")
	cmd.Flags().IntVar(&priority, "priority", entity.DefaultMappingPriority, "priority for rows without one (lower wins)")
	cmd.Flags().BoolVar(&replace, "replace", false, "deactivate the source's active mappings first")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func loadMappings(ctx context.Context, mappings repo.MappingRepository, file string, d seed.Defaults, replace bool) error {
	entries, err := seed.LoadFile(file, d)
	if err != nil {
		return err
	}
	if replace {
		if _, err := mappings.DeactivateSource(ctx, d.Source); err != nil {
			return err
		}
	}
	n, err := mappings.Insert(ctx, entries)
	if err != nil {
		return err
	}
	fmt.Printf("loaded %d mappings from %s\n", n, file)
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the mapping and history tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := common.LoadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			db, err := repo.Open(ctx, app.DBConfig(cfg, false), slog.Default())
			if err != nil {
				return err
			}
			defer repo.Close(db, slog.Default())
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Println("migrated")
			return nil
		},
	}
}
