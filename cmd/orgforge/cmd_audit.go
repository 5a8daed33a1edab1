package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/orgforge/internal/checkpoint"
	"github.com/ajitpratap0/orgforge/internal/okg"
)

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Run the business-rule audit against the checkpointed graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			ckpt, err := newCheckpointManager(logger)
			if err != nil {
				return fmt.Errorf("audit: opening checkpoints: %w", err)
			}

			bundle, err := ckpt.LoadSnapshot()
			if errors.Is(err, checkpoint.ErrNoSnapshot) {
				return fmt.Errorf("audit: no checkpoint found, run `orgforge generate` first")
			}
			if err != nil {
				return fmt.Errorf("audit: loading snapshot: %w", err)
			}

			repo := okg.NewRepository()
			repo.RestoreSnapshot(bundle.Repo)

			if refs := repo.ValidateReferences(); len(refs) > 0 {
				fmt.Printf("Referential integrity: %d errors\n", len(refs))
				for _, e := range refs {
					fmt.Printf("  %s\n", e)
				}
			} else {
				fmt.Println("Referential integrity: OK")
			}

			summary := okg.NewValidator(repo).Summarize()
			verdict := "PASSED"
			if !summary.Passed {
				verdict = "FAILED"
			}
			fmt.Printf("\nBusiness rules: %s (%d errors)\n", verdict, summary.TotalErrors)

			categories := make([]string, 0, len(summary.ErrorsByCategory))
			for c := range summary.ErrorsByCategory {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			for _, c := range categories {
				fmt.Printf("\n%s: %d\n", c, summary.ErrorsByCategory[c])
				for _, e := range summary.DetailedErrors[c] {
					fmt.Printf("  %s\n", e)
				}
			}
			return nil
		},
	}
}
