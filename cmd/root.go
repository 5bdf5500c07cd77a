// Package cmd defines the CLI commands for the sitecrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/sitecrawler/internal/app"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// loadApp loads configuration and builds the logger. Subcommands may adjust
// the config through override before services are built.
func loadApp(cfgFile string, override func(*config.Config)) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if override != nil {
		override(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate flags: %w", err)
		}
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.New(cfg, logger), nil
}

// overrides collects flag-driven config changes from the running subcommand.
type overrides interface {
	apply(cmd *cobra.Command, cfg *config.Config)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	crawlFlags := &crawlOverrides{}
	ingestFlags := &ingestOverrides{}

	cmd := &cobra.Command{
		Use:   "sitecrawler",
		Short: "A polite, concurrent crawler confined to one domain.",
		Long: `sitecrawler crawls a single website breadth-first from a seed URL,
reporting each page's title and links to an ingest endpoint. The ingest
command runs that endpoint.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var o overrides
			switch cmd.Name() {
			case "crawl":
				o = crawlFlags
			case "ingest":
				o = ingestFlags
			}
			appInstance, err := loadApp(cfgFile, func(cfg *config.Config) {
				if o != nil {
					o.apply(cmd, cfg)
				}
			})
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newCrawlCmd(crawlFlags))
	cmd.AddCommand(newIngestCmd(ingestFlags))

	return cmd
}

// resolveApp returns the App built by PersistentPreRunE. Callers own it and
// must Close it on every return path.
func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
