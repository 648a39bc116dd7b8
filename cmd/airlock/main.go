// airlock: bidirectional clipboard through a pair of shared files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/airlock/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "airlock",
		Short: "Bidirectional clipboard through shared files",
		Long: `airlock keeps two clipboards in step when the only thing the two machines
share is a directory, such as a mapped drive on a remote desktop session.

Each side runs "airlock run <input> <output>" with the two file names swapped.
Local clipboard changes are written to <output>; changes the peer writes to
<input> are copied into the local clipboard.

Config file search order (first found wins):
  /etc/airlock/airlock.toml
  $HOME/.config/airlock/airlock.toml
  path supplied via --config

All flags can be set via AIRLOCK_<FLAG> env vars or config-file keys.
See "airlock run --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newRemapCmd(),
		newStatusCmd(),
		newStopCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "airlock %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(opts logging.Options) {
	logging.Setup(logging.Resolve(opts))
}
