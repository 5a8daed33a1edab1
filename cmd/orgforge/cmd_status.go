package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show workflow checkpoint progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			ckpt, err := newCheckpointManager(logger)
			if err != nil {
				return fmt.Errorf("status: opening checkpoints: %w", err)
			}

			session := ckpt.Session()
			progress := ckpt.ProgressSummary()

			fmt.Printf("Session: %s\n", session.SessionID)
			fmt.Printf("Created: %s\n", progress.SessionCreated.Format("2006-01-02 15:04:05"))
			fmt.Printf("Progress: %d/%d steps (%.0f%%)\n\n", progress.CompletedSteps, progress.TotalSteps, progress.Percentage)

			fmt.Println("Completed:")
			if len(session.StepsCompleted) == 0 {
				fmt.Println("  (none)")
			}
			for _, step := range session.StepsCompleted {
				record := session.StepResults[step]
				fmt.Printf("  %-22s %s\n", step, record.CompletedAt.Format("2006-01-02 15:04:05"))
			}

			fmt.Println("\nRemaining:")
			if len(progress.RemainingSteps) == 0 {
				fmt.Println("  (none)")
			}
			for _, step := range progress.RemainingSteps {
				line := "  " + step
				if record, ok := session.StepResults[step]; ok && !record.Success {
					line += " (last attempt failed: " + record.Error + ")"
				}
				fmt.Println(line)
			}

			if next, ok := ckpt.NextStep(); ok {
				fmt.Printf("\nNext step: %s (run `orgforge generate --resume`)\n", next)
			}
			return nil
		},
	}
}
