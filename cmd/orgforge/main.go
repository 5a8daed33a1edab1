package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/orgforge/internal/checkpoint"
	"github.com/ajitpratap0/orgforge/internal/config"
	"github.com/ajitpratap0/orgforge/internal/engine"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "orgforge",
		Short: "OrgForge — synthetic organizational knowledge graph generator",
		Long:  "OrgForge generates a coherent fictitious software company — people, Jira-style tickets, and mailboxes — as deterministic, cross-referenced JSON exports.",
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
		generateCmd(),
		statusCmd(),
		auditCmd(),
		clearCmd(),
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

func newEngine(logger *slog.Logger) (engine.Engine, error) {
	if cfg.Claude.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set; cannot call Claude API")
	}
	return engine.NewClaudeEngine(cfg.Claude.APIKey, cfg.Claude.Model, logger), nil
}

func newCheckpointManager(logger *slog.Logger) (*checkpoint.Manager, error) {
	return checkpoint.NewManager(cfg.Checkpoint.Dir, logger)
}
