package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sjsage522/dealworker/config"
	"sjsage522/dealworker/internal/browser"
	"sjsage522/dealworker/internal/scraper"
	"sjsage522/dealworker/logger"
	apperrors "sjsage522/dealworker/pkg/errors"
	"sjsage522/dealworker/services/store"
	"sjsage522/dealworker/services/worker"
)

var rootCmd = &cobra.Command{
	Use:   "dealworker",
	Short: "dealworker scrapes completed real-estate sales from the MOJ transactions portal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger first
		logger.Init()
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	runFrom     string
	runTo       string
	runHeadless bool
)

var runCmd = &cobra.Command{
	Use:   "run [--from YYYY-MM-DD] [--to YYYY-MM-DD]",
	Short: "Runs one scrape cycle and delivers the records to the configured sinks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cmd.Flags().Changed("from") {
			cfg.FromDate = runFrom
		}
		if cmd.Flags().Changed("to") {
			cfg.ToDate = runTo
		}
		if cmd.Flags().Changed("headless") {
			cfg.Headless = runHeadless
		}

		w, cleanup, err := setup(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := w.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		logger.Default.Info().
			Str("run_id", res.RunID).
			Str("status", string(res.Status)).
			Int("records", res.Records()).
			Msg("Run finished")
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the scrape cycle every SCRAPE_INTERVAL_SECONDS until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		w, cleanup, err := setup(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		logger.Default.Info().
			Str("environment", cfg.Environment).
			Dur("scrape_interval", cfg.ScrapeInterval).
			Msg("Starting deal worker")
		w.Start()

		// Graceful shutdown
		logger.Default.Info().Msg("Shutting down gracefully...")
		return nil
	},
}

var anomaliesLimit int

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies [--limit N]",
	Short: "Prints the most recent anomalous properties from DATABASE_URL as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.DatabaseURL == "" {
			return apperrors.NewConfiguration("DATABASE_URL is required", nil)
		}

		db, err := store.Connect(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		anomalies, err := db.RecentAnomalies(cmd.Context(), anomaliesLimit)
		if err != nil {
			return err
		}
		if anomalies == nil {
			anomalies = []store.Property{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		return enc.Encode(anomalies)
	},
}

func init() {
	runCmd.Flags().StringVar(&runFrom, "from", "", "first day of the search window (default yesterday)")
	runCmd.Flags().StringVar(&runTo, "to", "", "last day of the search window (default today)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "run Chrome without a window")
	anomaliesCmd.Flags().IntVar(&anomaliesLimit, "limit", 20, "number of anomalies to print")
	rootCmd.AddCommand(runCmd, workerCmd, anomaliesCmd)
}

func main() {
	// Load environment variables
	godotenv.Load()

	// Set up signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup validates the configuration and wires the worker to its services
func setup(ctx context.Context, cfg *config.Config) (*worker.Worker, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if _, err := scraper.LoadSelectors(cfg.SelectorsFile); err != nil {
		return nil, nil, err
	}

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	newRunner := func(now time.Time) (worker.Runner, error) {
		opts, err := scraper.OptionsFromConfig(cfg, now)
		if err != nil {
			return nil, err
		}
		return scraper.New(opts, browser.Launch), nil
	}

	w := worker.NewWorker(ctx, newRunner, services.Sinks, worker.Options{
		Cache:       services.Cache,
		DedupeTTL:   cfg.DedupeTTL,
		BlockTime:   cfg.BlockTime,
		Interval:    cfg.ScrapeInterval,
		Environment: cfg.Environment,
	})
	return w, services.Cleanup, nil
}
