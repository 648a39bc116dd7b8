package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"go.klb.dev/airlock/internal/control"
	"go.klb.dev/airlock/internal/ipc"
	"go.klb.dev/airlock/internal/message"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running bridge",
		Long: `Displays the files, watched directory and transfer counters of the bridge
running on this machine, queried over the local control socket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := control.NewClient().Status()
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(cmd.OutOrStdout(), st, ipc.SocketPath(), time.Now())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output raw JSON")
	return cmd
}

func printStatus(out io.Writer, st *message.Status, socket string, now time.Time) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s (pid %d)\n", st.State, st.PID)
	fmt.Fprintf(w, "Control:\t%s\n", socket)
	fmt.Fprintf(w, "Input:\t%s\n", st.Input)
	fmt.Fprintf(w, "Output:\t%s\n", st.Output)
	fmt.Fprintf(w, "Watching:\t%s\n", st.WatchedDir)
	fmt.Fprintf(w, "Clipboard:\t%s\n", st.Clipboard)
	fmt.Fprintf(w, "Reopen:\t%t\n", st.Reopen)
	fmt.Fprintf(w, "Poll:\t%s\n", st.PollInterval)
	fmt.Fprintf(w, "Started:\t%s\n", fmtAge(st.StartedAt, now))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "\tCOUNT\tLAST\n")
	fmt.Fprintf(w, "Cycles\t%d\t\n", st.Cycles)
	fmt.Fprintf(w, "Captures\t%d\t%s\n", st.Captures, fmtAge(st.LastCapture, now))
	fmt.Fprintf(w, "Applies\t%d\t%s\n", st.Applies, fmtAge(st.LastApply, now))
	fmt.Fprintf(w, "Remaps\t%d\t\n", st.Remaps)
	_ = w.Flush()
}

func fmtAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := now.Sub(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
