package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard all checkpoint state",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			ckpt, err := newCheckpointManager(logger)
			if err != nil {
				return fmt.Errorf("clear: opening checkpoints: %w", err)
			}
			if err := ckpt.Clear(); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			fmt.Println("Checkpoints cleared.")
			return nil
		},
	}
}
