package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/gateway"
	"github.com/storyloom/storyloom/internal/store"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "storyloom",
		Short: "storyloom — manuscript ingestion for novelists",
		Long:  "Storyloom ingests a folder of manuscript files, classifies each with an LLM, reconciles characters, locations, and chapters, asks clarifying questions, and materializes a local writing project.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		ingestCmd(),
		projectsCmd(),
		codexCmd(),
		chaptersCmd(),
		statsCmd(),
		healthCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(logger *slog.Logger) (store.Store, error) {
	st, err := store.NewSQLiteStore(cfg.Store.DataDir, logger)
	if err != nil {
		// Return an untyped nil: a nil *SQLiteStore wrapped in the
		// interface would slip past st == nil checks in callers.
		return nil, err
	}
	return st, nil
}

func newGateway(logger *slog.Logger) gateway.Gateway {
	return gateway.NewAnthropicGateway(
		cfg.Claude.APIKey,
		cfg.Claude.RequestsPerMinute,
		logger,
	)
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
