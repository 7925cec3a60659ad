package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sjsage522/listingworker/config"
	"sjsage522/listingworker/internal/metrics"
	"sjsage522/listingworker/logger"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "listingworker",
		Short: "Marketplace listing ingestion worker",
		Long: `Scrapes secondhand marketplaces, translates listing titles to English
and stores the listings for display.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load environment variables
			_ = godotenv.Load()

			logger.Init()

			cfg = config.LoadConfig()
			if err := cfg.Validate(); err != nil {
				logger.Default.Error().Err(err).Msg("Invalid configuration")
				return err
			}
			return nil
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run ingestion cycles until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			services, err := initializeServices(ctx, cfg, true)
			if err != nil {
				logger.Default.Error().Err(err).Msg("Failed to initialize services")
				return err
			}
			defer services.Cleanup()

			if cfg.MetricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
						logger.Default.Error().Err(err).Msg("Metrics server failed")
					}
				}()
			}

			logger.Default.Info().
				Str("environment", cfg.Environment).
				Dur("run_interval", cfg.RunInterval).
				Interface("site_pages", cfg.SitePages).
				Msg("Starting listing worker")

			err = newWorker(cfg, services).Start(ctx)
			if errors.Is(err, context.Canceled) {
				logger.Default.Info().Msg("Shutting down gracefully...")
				return nil
			}
			return err
		},
	}

	onceCmd = &cobra.Command{
		Use:   "once",
		Short: "Run a single ingestion cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			services, err := initializeServices(ctx, cfg, true)
			if err != nil {
				logger.Default.Error().Err(err).Msg("Failed to initialize services")
				return err
			}
			defer services.Cleanup()

			r := newWorker(cfg, services).RunOnce(ctx)
			logger.Default.Info().
				Str("run_id", r.RunID).
				Dur("elapsed", r.Duration).
				Msg("Run complete")
			return nil
		},
	}

	sweepOnce bool

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Delete listings older than the retention window",
		Long: `Runs the retention sweeper on its own schedule, or a single sweep
with --once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			services, err := initializeServices(ctx, cfg, false)
			if err != nil {
				logger.Default.Error().Err(err).Msg("Failed to initialize services")
				return err
			}
			defer services.Cleanup()

			sw := newSweeper(cfg, services)
			if sweepOnce {
				result, err := sw.Sweep(ctx, cfg.RetentionDays)
				if err != nil {
					logger.Default.Error().Err(err).Msg("Retention sweep failed")
					return err
				}
				logger.Default.Info().
					Time("cutoff", result.Cutoff).
					Int64("found", result.Found).
					Int64("deleted", result.Deleted).
					Msg("Retention sweep complete")
				return nil
			}

			logger.Default.Info().
				Int("max_age_days", sw.MaxAgeDays()).
				Dur("interval", cfg.SweepInterval).
				Msg("Starting retention sweeper")
			if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
)

func init() {
	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "sweep once and exit")

	rootCmd.AddCommand(runCmd, onceCmd, sweepCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
