package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.klb.dev/airlock/internal/control"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Shut down the running bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := control.NewClient().Shutdown(); err != nil {
				return fmt.Errorf("stop: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Shutdown requested")
			return nil
		},
	}
}
