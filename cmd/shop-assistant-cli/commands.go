package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/mcpserver"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/storage"
)

// newExportCmd creates the export subcommand.
func newExportCmd() *cobra.Command {
	var (
		output  string
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog database to CSV",
		Long: `Export one row per product variant detail from the catalog database
(SQLite or Postgres) into the CSV consumed by sync.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			if output == "" {
				output = cfg.Catalog.CSVPath
			}
			ui := NewUI(outputJSON, noColor)

			logger.Info().
				Str("driver", cfg.Catalog.Driver).
				Str("output", output).
				Msg("Exporting catalog")

			db, err := storage.Open(ctx, cfg.Catalog.Driver, cfg.Catalog.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			if migrate {
				if err := storage.Migrate(ctx, db); err != nil {
					return err
				}
				ui.Step("Catalog schema is up to date")
			}

			exporter, err := storage.NewExporter(db, cfg.Catalog.Driver, logger)
			if err != nil {
				return err
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer file.Close()

			start := time.Now()
			counter, done := ui.ByteCounter("writing " + output)
			count, err := exporter.Export(ctx, io.MultiWriter(file, counter))
			done()
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(map[string]interface{}{
					"output":     output,
					"rows":       count,
					"durationMs": time.Since(start).Milliseconds(),
				})
			}
			ui.Success("Exported %d rows to %s in %s", count, output, FormatDuration(time.Since(start)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV path (default: catalog.csv_path)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create the catalog schema if it is missing")

	return cmd
}

// newSyncCmd creates the sync subcommand.
func newSyncCmd() *cobra.Command {
	var (
		input  string
		fromDB bool
		reset  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Embed the catalog into the vector index",
		Long: `Read the catalog CSV (or the catalog database with --from-db), render one
document per row and upsert the embeddings into the vector index.

Re-running sync on the same catalog is idempotent. Use --reset to drop
entries for products that no longer exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			var rows []catalog.CatalogRow
			var err error
			if fromDB {
				rows, err = loadRowsFromDB(ctx)
			} else {
				if input == "" {
					input = cfg.Catalog.CSVPath
				}
				rows, err = loadRowsFromCSV(input)
			}
			if err != nil {
				return err
			}
			ui.Step("Loaded %d catalog rows", len(rows))

			components, err := loadComponents(ctx)
			if err != nil {
				return err
			}
			defer components.Close()

			bar := ui.ProgressBar("embedding", int64(len(rows)))
			result, err := components.Syncer(reset).Sync(ctx, rows, func(done, total int) {
				if bar == nil {
					return
				}
				bar.SetTotal(int64(total), false)
				bar.SetCurrent(int64(done))
			})
			if bar != nil {
				// Completes the bar even when fewer documents than rows were indexed.
				bar.SetTotal(-1, true)
			}
			if err != nil {
				return err
			}

			report, err := components.Guard.Check(ctx)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(map[string]interface{}{
					"rows":       result.Rows,
					"indexed":    result.Indexed,
					"skipped":    result.Skipped,
					"stale":      report.Stale,
					"durationMs": result.Duration.Milliseconds(),
				})
			}
			if report.HasStale() {
				ui.Warning("%d vectors from %v remain in the index; run sync --reset to drop them",
					report.Stale, report.StaleModels)
			}
			ui.Success("Catalog synced")
			ui.KeyValue("Rows", result.Rows)
			ui.KeyValue("Indexed", result.Indexed)
			ui.KeyValue("Skipped", result.Skipped)
			ui.KeyValue("Duration", FormatDuration(result.Duration))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "catalog CSV path (default: catalog.csv_path)")
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "read rows from the catalog database instead of CSV")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the index before syncing")

	return cmd
}

func loadRowsFromCSV(path string) ([]catalog.CatalogRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog csv: %w", err)
	}
	defer f.Close()

	return ingest.ReadCatalogCSV(f)
}

func loadRowsFromDB(ctx context.Context) ([]catalog.CatalogRow, error) {
	db, err := storage.Open(ctx, cfg.Catalog.Driver, cfg.Catalog.DSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	exporter, err := storage.NewExporter(db, cfg.Catalog.Driver, logger)
	if err != nil {
		return nil, err
	}
	return exporter.Rows(ctx)
}

// newSearchCmd creates the search subcommand.
func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Print the product context retrieved for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			ctx, _ = observability.ContextWithNewTraceID(ctx)

			ui := NewUI(outputJSON, noColor)

			components, err := loadComponents(ctx)
			if err != nil {
				return err
			}
			defer components.Close()

			spin := ui.Spinner("Đang tìm sản phẩm...")
			result, err := components.Pipeline.Search(ctx, strings.Join(args, " "))
			spin.Stop()
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(result)
			}

			ui.Info("Outcome: %s (retrieved %d, kept %d, %s)",
				result.Outcome, result.Retrieved, len(result.Candidates), FormatDuration(result.Latency))
			fmt.Println()
			fmt.Println(result.Context)
			return nil
		},
	}

	return cmd
}

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question about the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			ctx, _ = observability.ContextWithNewTraceID(ctx)

			ui := NewUI(outputJSON, noColor)

			components, err := loadComponents(ctx)
			if err != nil {
				return err
			}
			defer components.Close()

			spin := ui.Spinner("Đang trả lời...")
			answer, err := components.Answer(ctx, strings.Join(args, " "))
			spin.Stop()
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(answer)
			}
			ui.Assistant(answer.Text)
			return nil
		},
	}

	return cmd
}

// newChatCmd creates the chat subcommand.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the shop assistant",
		Long:  `Start an interactive session. Type "exit" or "thoát" to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			components, err := loadComponents(ctx)
			if err != nil {
				return err
			}
			defer components.Close()

			// Chat is interactive, so it ignores --json.
			ui := NewUI(false, noColor)
			return runChat(ctx, os.Stdin, ui, components.Answer, logger)
		},
	}
}

// newServeMCPCmd creates the serve-mcp subcommand.
func newServeMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the shop assistant tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := loadComponents(cmd.Context())
			if err != nil {
				return err
			}
			defer components.Close()

			if err := components.ContextCache.WatchCatalogSync(cmd.Context(), components.Notifier); err != nil {
				logger.Warn().Err(err).Msg("Catalog sync watch disabled")
			}

			server := mcpserver.New("shop-assistant", version, components.Pipeline, components, logger)
			logger.Info().Msg("Serving MCP over stdio")
			return server.ServeStdio()
		},
	}
}
