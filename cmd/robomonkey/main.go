package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// Exit codes: 0 success, 1 error, 130 interrupted
const exitInterrupted = 130

var configPath string

var rootCmd = &cobra.Command{
	Use:   "robomonkey",
	Short: "Continuous code indexing daemon",
	Long: `robomonkey keeps a set of source repositories continuously indexed,
embedded, and summarized inside PostgreSQL. Each repository lives in its
own schema; a durable job queue in the control schema coordinates parallel
workers, filesystem watchers, and health checks across daemon instances.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the YAML config (defaults to $ROBOMONKEY_CONFIG, then config/robomonkey.yaml)")

	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(daemonCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(exitInterrupted)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the effective configuration and builds its logger
func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	format := cfg.Logging.Format
	if !cfg.Logging.JSONLogs && format == "json" {
		format = "console"
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: format,
		File:   cfg.Logging.File,
		Caller: true,
	})

	return cfg, log, nil
}
