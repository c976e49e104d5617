// Package main provides the shop assistant CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

var version = "dev"

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "shop-assistant",
	Short: "Shop assistant CLI for catalog sync, product search and chat",
	Long: `Shop assistant CLI answers Vietnamese questions about the phone catalog.

Use this tool to:
- Export the catalog database to CSV
- Sync the CSV catalog into the vector index
- Search product context or ask a single question
- Chat interactively or serve the MCP tools over stdio

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}
		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}

		// stdout carries command output (and the MCP protocol), so logs go to stderr.
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      logFormat,
			Output:      os.Stderr,
			ServiceName: "shop-assistant-cli",
		})

		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Add subcommands
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newServeMCPCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Version must work without a config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			if outputJSON {
				_ = printJSON(map[string]string{
					"version": version,
					"go":      runtime.Version(),
				})
				return
			}
			fmt.Printf("shop-assistant %s\n", version)
		},
	}
}

// loadComponents builds the runtime components from the loaded config.
func loadComponents(ctx context.Context) (*app.Components, error) {
	components, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize components: %w", err)
	}
	return components, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
