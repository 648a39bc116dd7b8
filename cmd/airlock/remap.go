package main

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"go.klb.dev/airlock/internal/bridge"
	"go.klb.dev/airlock/internal/control"
)

func newRemapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remap <path>",
		Short: "Point the running bridge at a different input file",
		Long: `Tells the running bridge to read clipboard updates from <path> instead of
its current input file. The path is resolved here, relative to the current
directory, before it is sent. A file that does not exist yet is accepted; the
bridge picks it up once the peer creates it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			err = control.NewClient().Remap(path)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "Remapped input to file: %s\n", path)
			case bridge.IsNotExist(err):
				fmt.Fprintf(cmd.OutOrStdout(), "Remapped input to file: %s (waiting for it to appear)\n", path)
			default:
				return fmt.Errorf("remap: %w", err)
			}
			return nil
		},
	}
}

// resolvePath expands ~ and makes p absolute, since the bridge may run in a
// different working directory.
func resolvePath(p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
