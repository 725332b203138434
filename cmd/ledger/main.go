package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cfdi-ledger/internal/aggregate"
	"github.com/joseph-ayodele/cfdi-ledger/internal/backend"
	"github.com/joseph-ayodele/cfdi-ledger/internal/categories"
	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
	"github.com/joseph-ayodele/cfdi-ledger/internal/export"
	"github.com/joseph-ayodele/cfdi-ledger/internal/extract"
	"github.com/joseph-ayodele/cfdi-ledger/internal/ingest"
	"github.com/joseph-ayodele/cfdi-ledger/internal/store"
	"github.com/joseph-ayodele/cfdi-ledger/internal/textsource"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	rootCmd := newRootCommand(a)
	err := rootCmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger: %v\n", err)
		os.Exit(1)
	}
}

// app holds the components a command runs against. They are built once the
// command line has been parsed.
type app struct {
	out io.Writer

	cfg        *common.Config
	logger     *slog.Logger
	backend    backend.Backend
	tree       *categories.Tree
	engine     *extract.Engine
	source     textsource.Source
	store      *store.Store
	aggregator *aggregate.Service
	exporter   *export.Service
	importer   *ingest.Importer
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Payroll and invoice record ledger",
		Long: `ledger extracts fiscal fields from PDF receipts, keeps them in per-category
namespaces tagged by origin, and totals them per category and origin.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			id := uuid.NewString()
			ctx := common.WithRequestID(cmd.Context(), id)
			if err := a.init(ctx); err != nil {
				return err
			}
			cmd.SetContext(common.WithLogger(ctx, a.logger.With("command", cmd.Name(), "request_id", id)))
			return nil
		},
	}
	cmd.AddCommand(
		newCategoriesCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newCountCmd(a),
		newUploadCmd(a),
		newManualCmd(a),
		newSetOriginCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newSummaryCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newWatchCmd(a),
		newExtractCmd(a),
	)
	return cmd
}

func (a *app) init(ctx context.Context) error {
	a.cfg = common.LoadConfig()
	a.logger = newLogger(a.cfg.Log)
	slog.SetDefault(a.logger)
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	tree, err := categories.Load(a.cfg.Categories.File, a.logger)
	if err != nil {
		return err
	}
	a.tree = tree

	b, err := backend.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return common.WrapError(err, "open "+a.cfg.Store.Backend+" backend")
	}
	a.backend = b
	if err := tree.EnsureNamespaces(ctx, b); err != nil {
		return err
	}

	src, err := textsource.New(a.cfg.Text, a.logger)
	if err != nil {
		return err
	}
	a.source = src
	a.engine = extract.NewEngine(a.logger)

	s, err := store.New(b, a.engine, src, store.OptionsFromConfig(a.cfg), a.logger)
	if err != nil {
		return err
	}
	a.store = s
	a.aggregator = aggregate.NewService(s, tree, a.cfg.Origins, a.logger)
	a.exporter = export.NewService(s, a.aggregator, a.logger)
	a.importer = ingest.NewImporter(s, a.logger)
	return nil
}

func (a *app) close() {
	if a.backend == nil {
		return
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("backend close failed", "error", err)
	}
}

// category rejects namespaces the category tree does not define.
func (a *app) category(key string) error {
	if !a.tree.Contains(key) {
		return common.InvalidInput("unknown category %q", key)
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(cfg common.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
