package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"NewsIngestor/internal/app"
	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/logging"
	"NewsIngestor/internal/usecase"
)

var cfgFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "newsingestor",
		Short:         "Fetch, enrich and store tech news",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default $NEWS_INGESTOR_CONFIG)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newBackfillCmd())
	return rootCmd
}

func loadConfig() (config.Config, *slog.Logger) {
	if cfgFile != "" {
		_ = os.Setenv("NEWS_INGESTOR_CONFIG", cfgFile)
	}
	cfg := config.Load()
	return cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run ingestion on a fixed interval and expose /health and /metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := loadConfig()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Serve(cmd.Context())
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform a single ingestion run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := loadConfig()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			entry, err := application.RunOnce(cmd.Context())
			if err := runOutcome(entry, err, logger); err != nil {
				return err
			}
			if entry.ID == "" {
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s, %d articles added\n", entry.ID, entry.Status, entry.ArticlesAdded)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := loadConfig()
			return app.Migrate(cmd.Context(), cfg, logger)
		},
	}
}

func newBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-slugs",
		Short: "Assign slugs to stored articles that have none",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := loadConfig()
			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			updated, err := application.BackfillSlugs(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d articles updated\n", updated)
			return nil
		},
	}
}

// runOutcome maps a run result to the command error: only a FAILURE run, or a
// run that never started, fails the command.
func runOutcome(entry domain.IngestionLog, err error, logger *slog.Logger) error {
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		logger.Warn("another run holds the lock, nothing to do")
		return nil
	case entry.Status == domain.RunFailure:
		return fmt.Errorf("ingestion run %s failed: %w", entry.ID, err)
	case err != nil && entry.ID == "":
		return err
	case err != nil:
		logger.Error("ingestion run finished but its log update failed", "run_id", entry.ID, "status", entry.Status, "error", err)
	}
	return nil
}
