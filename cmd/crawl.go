package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/config"
)

type crawlOverrides struct {
	seed          string
	allowedDomain string
	maxPages      int
	maxDepth      int
	workers       int
	reporter      string
}

func (o *crawlOverrides) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Crawler.SeedURL = o.seed
	}
	if flags.Changed("allowed-domain") {
		cfg.Crawler.AllowedDomain = o.allowedDomain
	}
	if flags.Changed("max-pages") {
		cfg.Crawler.MaxPages = o.maxPages
	}
	if flags.Changed("max-depth") {
		cfg.Crawler.MaxDepth = o.maxDepth
	}
	if flags.Changed("workers") {
		cfg.Crawler.Workers = o.workers
	}
	if flags.Changed("reporter") {
		cfg.Reporter.Kind = o.reporter
	}
}

func newCrawlCmd(o *crawlOverrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl one domain from the seed URL",
		Long: `Crawls breadth-first from the seed URL, never leaving the allowed
domain, until the page budget is spent or no work remains. Each crawled
page is handed to the configured reporter.`,
		RunE: runCrawlCommand,
	}
	flags := cmd.Flags()
	flags.StringVar(&o.seed, "seed", "", "seed URL (overrides crawler.seed_url)")
	flags.StringVar(&o.allowedDomain, "allowed-domain", "", "host the crawl is confined to")
	flags.IntVar(&o.maxPages, "max-pages", 0, "page budget")
	flags.IntVar(&o.maxDepth, "max-depth", 0, "maximum link depth from the seed")
	flags.IntVar(&o.workers, "workers", 0, "worker count (0 means one per CPU)")
	flags.StringVar(&o.reporter, "reporter", "", "reporter kind: http, kafka or memory")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer appInstance.Close()
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := appInstance.BuildEngine()
	if err != nil {
		return err
	}
	appInstance.StartMetricsServer()

	stats, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}
	if ctx.Err() != nil {
		logger.Warn("Crawl interrupted", zap.Error(ctx.Err()))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Crawler finished. Total pages crawled: %d\n", stats.PagesCrawled)
	return nil
}
