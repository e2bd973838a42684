package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stylefeed/stylefeed/internal/config"
	"github.com/stylefeed/stylefeed/internal/embedding"
	"github.com/stylefeed/stylefeed/internal/runner"
	"github.com/stylefeed/stylefeed/internal/storage"
)

var (
	cfgFile   string
	sitesFile string
	brands    string
	limit     int
	verbose   bool
	dryRun    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stylefeed",
		Short: "stylefeed — fashion catalog scraper",
		Long: `stylefeed ingests fashion retailer catalogs into a product database.

Per configured site it discovers listing endpoints or resolves the full
product identifier list per category (cached URLs, direct API, headless
browser fallback), fetches product details in batches, normalizes them
into catalog rows, embeds product images, and upserts everything keyed
by product id.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape all configured sites",
		Long:  "Scrape every site in the sites file, optionally filtered by brand, and upsert the rows into storage.",
		RunE:  runScrape,
	}

	cmd.Flags().StringVarP(&sitesFile, "sites", "s", "sites.yaml", "sites file path")
	cmd.Flags().StringVarP(&brands, "brands", "b", "", "comma-separated brand filter (default: all sites)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "max products per site (0 = unlimited, for testing)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "write rows to a local jsonl file instead of the database")

	return cmd
}

// runScrape executes the scrape command.
func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sites, err := config.LoadSites(sitesFile)
	if err != nil {
		return fmt.Errorf("load sites: %w", err)
	}
	sites = config.FilterSites(sites, brands)
	if len(sites) == 0 {
		return fmt.Errorf("no sites to scrape — check %s and the brand filter", sitesFile)
	}

	// SIGINT finishes the in-flight request, skips the rest, and still
	// upserts what was collected.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dryRun {
		cfg.Storage.Type = "jsonl"
	}
	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	var embedder runner.Embedder
	if cfg.Embedding.Endpoint != "" {
		embedder = embedding.New(cfg.Embedding, logger)
	} else {
		logger.Info("embedding endpoint not configured, rows will be stored without vectors")
	}

	logger.Info("starting scrape",
		"sites", len(sites),
		"limit", limit,
		"storage", store.Name(),
	)

	stats, err := runner.New(cfg, store, embedder, logger).Run(ctx, sites, limit)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Printf("\nScrape complete in %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Printf("   Sites:      %d\n", stats.Sites)
	fmt.Printf("   Discovered: %d products (%d unique)\n", stats.Discovered, stats.Unique)
	fmt.Printf("   Collected:  %d rows\n", stats.Collected)
	fmt.Printf("   Upserted:   %d rows to %s\n", stats.Upserted, store.Name())
	return nil
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("HTTP:\n")
			fmt.Printf("  Request Timeout:    %s\n", cfg.HTTP.RequestTimeout)
			fmt.Printf("  Politeness Delay:   %s\n", cfg.HTTP.PolitenessDelay)
			fmt.Printf("  Respect robots.txt: %v\n", cfg.HTTP.RespectRobots)
			fmt.Printf("  Max Body Size:      %d bytes\n", cfg.HTTP.MaxBodySize)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Browser.Enabled)
			fmt.Printf("  Headless:           %v\n", cfg.Browser.Headless)
			fmt.Printf("  Scroll Passes:      %d\n", cfg.Browser.ScrollPasses)
			fmt.Printf("  Stealth:            %v\n", cfg.Browser.Stealth)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:               %s\n", cfg.Storage.Type)
			fmt.Printf("  Batch Size:         %d\n", cfg.Storage.BatchSize)
			fmt.Printf("\nEmbedding:\n")
			fmt.Printf("  Endpoint:           %s\n", cfg.Embedding.Endpoint)
			fmt.Printf("  Model:              %s\n", cfg.Embedding.Model)
			fmt.Printf("  Dimensions:         %d\n", cfg.Embedding.Dimensions)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stylefeed %s\n", config.Version)
		},
	}
}

// setupLogger creates a structured logger from the logging config,
// with the verbose flag overriding the level.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
