package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/airlock/internal/bridge"
	"go.klb.dev/airlock/internal/clip"
	"go.klb.dev/airlock/internal/control"
	"go.klb.dev/airlock/internal/ipc"
	"go.klb.dev/airlock/internal/metrics"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run <input> <output>",
		Short: "Run the clipboard bridge",
		Long: `Runs the bridge in the foreground until interrupted.

<input> is the file the peer writes; it is read into the local clipboard
whenever it changes. <output> is created (or emptied) at startup and receives
every new local clipboard value. On exit <output> is emptied again.

Unless --no-prompt is given, lines typed on stdin remap the input file, the
same as "airlock remap <path>" from another terminal.`,
		Args:    cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(cmd, v, args)
		},
	}

	f := cmd.Flags()
	f.Bool("no-refresh", false, "keep the input file open between reads (local filesystems only)")
	f.String("clipboard-format", "text", "clipboard format: text|image")
	f.Duration("poll-interval", bridge.DefaultPollInterval, "longest wait between checks of the input directory")
	f.Bool("remove-on-exit", false, "delete the output file on exit instead of emptying it")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	f.Bool("no-prompt", false, "do not read remap paths from stdin")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

// runConfig is the resolved configuration of the run command.
type runConfig struct {
	Input        string
	Output       string
	Format       clip.Format
	PollInterval time.Duration
	NoRefresh    bool
	RemoveOnExit bool
	MetricsAddr  string
	NoPrompt     bool
}

func loadRunConfig(v *viper.Viper, args []string) (runConfig, error) {
	format, err := clip.ParseFormat(v.GetString("clipboard-format"))
	if err != nil {
		return runConfig{}, err
	}
	in, err := homedir.Expand(args[0])
	if err != nil {
		return runConfig{}, fmt.Errorf("input: %w", err)
	}
	out, err := homedir.Expand(args[1])
	if err != nil {
		return runConfig{}, fmt.Errorf("output: %w", err)
	}
	poll := v.GetDuration("poll-interval")
	if poll <= 0 {
		return runConfig{}, fmt.Errorf("poll-interval must be positive, got %s", poll)
	}
	return runConfig{
		Input:        in,
		Output:       out,
		Format:       format,
		PollInterval: poll,
		NoRefresh:    v.GetBool("no-refresh"),
		RemoveOnExit: v.GetBool("remove-on-exit"),
		MetricsAddr:  v.GetString("metrics-addr"),
		NoPrompt:     v.GetBool("no-prompt"),
	}, nil
}

func runBridge(cmd *cobra.Command, v *viper.Viper, args []string) error {
	setupLogging(v)

	rc, err := loadRunConfig(v, args)
	if err != nil {
		return err
	}

	// Two bridges on one desktop would fight over the clipboard.
	if ipc.IsRunning() {
		return fmt.Errorf("another airlock bridge is already running (%s); run a single instance", ipc.SocketPath())
	}

	cb := clip.New(rc.Format)
	defer cb.Close()

	b, err := bridge.New(bridge.Config{
		InputPath:    rc.Input,
		OutputPath:   rc.Output,
		Clipboard:    cb,
		PollInterval: rc.PollInterval,
		NoRefresh:    rc.NoRefresh,
		RemoveOnExit: rc.RemoveOnExit,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Successfully started airlock clipboard bridge")
	fmt.Fprintf(out, "On the other side run:\n  airlock run %s %s\n\n", peerPath(rc.Output), peerPath(rc.Input))

	if ln, err := ipc.Listen(); err != nil {
		slog.Warn("control socket unavailable", "err", err)
	} else {
		slog.Info("control socket listening", "path", ipc.SocketPath())
		go func() {
			if err := control.Serve(ctx, ln, b); err != nil {
				slog.Warn("control socket stopped", "err", err)
			}
		}()
	}

	if rc.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, rc.MetricsAddr); err != nil {
				slog.Error("metrics server failed", "addr", rc.MetricsAddr, "err", err)
			}
		}()
	}

	if !rc.NoPrompt {
		go promptRemap(ctx, cmd.InOrStdin(), out, b)
	}

	err = b.Run(ctx)
	fmt.Fprintln(out, "\nGracefully shut down airlock clipboard bridge")
	return err
}

// peerPath is the name the peer most likely uses for a shared file: only the
// base name survives when the directory is mapped under another root.
func peerPath(p string) string {
	return filepath.Base(p)
}

// remapper is the part of the bridge the stdin prompt drives.
type remapper interface {
	Remap(path string) error
	Done() <-chan struct{}
}

// promptRemap reads one path per line from r and remaps the input to it.
// Blank lines are ignored; EOF ends the prompt but not the bridge.
func promptRemap(ctx context.Context, r io.Reader, w io.Writer, b remapper) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(w, "Remap clipboard input file [CTRL-C to exit]: ")
		var line string
		select {
		case <-ctx.Done():
			return
		case <-b.Done():
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		err := b.Remap(line)
		switch {
		case err == nil:
			fmt.Fprintf(w, "Remapped input to file: %s\n", line)
		case bridge.IsNotExist(err):
			fmt.Fprintf(w, "Remapped input to file: %s (waiting for it to appear)\n", line)
		case errors.Is(err, bridge.ErrSamePath):
			fmt.Fprintf(w, "Error: %s is the output file\n", line)
		default:
			fmt.Fprintf(w, "Error: %v\n", err)
		}
	}
}
