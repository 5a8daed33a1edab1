package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/orgforge/internal/export"
	"github.com/ajitpratap0/orgforge/internal/workflow"
)

func generateCmd() *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the generation workflow end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			eng, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			ckpt, err := newCheckpointManager(logger)
			if err != nil {
				return fmt.Errorf("generate: opening checkpoints: %w", err)
			}

			var opts workflow.Options
			if cfg.Graph.Enabled {
				graph, gerr := export.NewGraphExporter(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database, logger)
				if gerr != nil {
					return fmt.Errorf("generate: connecting to graph store: %w", gerr)
				}
				defer func() { _ = graph.Close(ctx) }()
				opts.Graph = graph
			}

			mgr := workflow.NewManager(cfg, eng, ckpt, logger, opts)
			result, err := mgr.Run(ctx, resume)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			fmt.Printf("Generation complete.\n\n")
			fmt.Printf("  Persons: %d\n", result.PersonsCreated)
			fmt.Printf("  Tickets: %d\n", result.TicketsCreated)
			fmt.Printf("  Emails:  %d\n", result.EmailsGenerated)
			fmt.Printf("\nOutput directory: %s\n", result.OutputDir)
			for _, f := range result.Files {
				fmt.Printf("  %-24s %6d records  %s\n", f.Filename, f.RecordCount, f.ContentHash[:12])
			}
			for name, reason := range result.Skipped {
				fmt.Printf("  skipped %s: %s\n", name, reason)
			}
			if result.Audit != nil {
				verdict := "PASSED"
				if !result.Audit.OverallPassed {
					verdict = "FAILED"
				}
				fmt.Printf("\nQA audit: %s (%d rule errors)\n", verdict, result.Audit.BusinessRules.TotalErrors)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the last successful checkpoint")
	return cmd
}
