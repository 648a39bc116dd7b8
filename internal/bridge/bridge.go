// Package bridge runs the sync loop that moves clipboard contents through
// the airlock: local clipboard to the outbound file, inbound file to the
// local clipboard, without echoing either back.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"go.klb.dev/airlock/internal/channel"
	"go.klb.dev/airlock/internal/clip"
	"go.klb.dev/airlock/internal/frame"
	"go.klb.dev/airlock/internal/message"
	"go.klb.dev/airlock/internal/metrics"
)

// DefaultPollInterval bounds how long a remote update can go unnoticed.
const DefaultPollInterval = time.Second

var (
	// ErrSamePath is returned when input and output name the same file.
	ErrSamePath = channel.ErrSamePath
	// ErrStopped is returned by Remap once the bridge is shutting down.
	ErrStopped = errors.New("bridge is shutting down")
)

// State is the loop state.
type State int32

const (
	Running State = iota
	ShuttingDown
)

func (s State) String() string {
	if s == ShuttingDown {
		return "shutting-down"
	}
	return "running"
}

// Config holds everything a Bridge needs. It is read once by New.
type Config struct {
	InputPath  string
	OutputPath string

	Clipboard clip.Access

	// PollInterval is the longest a cycle waits for the inbound directory.
	// Zero means DefaultPollInterval.
	PollInterval time.Duration

	// NoRefresh keeps the inbound handle open between reads instead of
	// reopening it each time. Only safe on local filesystems.
	NoRefresh bool

	// RemoveOnExit deletes the outbound file on shutdown instead of only
	// emptying it.
	RemoveOnExit bool

	// Fs defaults to the OS filesystem.
	Fs afero.Fs

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	// WatcherFactory overrides the inbound directory watcher.
	WatcherFactory channel.WatcherFactory
}

// Bridge is one endpoint of the airlock.
type Bridge struct {
	cfg   Config
	clock clockwork.Clock
	clip  clip.Access
	out   *channel.Output
	in    *channel.Input

	state syncState // loop goroutine only
	// retryApply carries a failed Apply over to the next cycle; the watcher
	// signal that prompted it has already been consumed.
	retryApply bool

	stopping atomic.Bool
	done     chan struct{}
	stopOnce sync.Once

	statsMu sync.Mutex
	stats   stats
}

type stats struct {
	startedAt   time.Time
	cycles      uint64
	captures    uint64
	applies     uint64
	remaps      uint64
	lastCapture time.Time
	lastApply   time.Time
}

// New opens both channels. Failing to create the output file is fatal; a
// missing input file is not, it is picked up once the peer creates it.
func New(cfg Config) (*Bridge, error) {
	if cfg.Clipboard == nil {
		return nil, errors.New("bridge: no clipboard")
	}
	if cfg.InputPath == "" || cfg.OutputPath == "" {
		return nil, errors.New("bridge: input and output paths are required")
	}
	if channel.SamePath(cfg.InputPath, cfg.OutputPath) {
		return nil, ErrSamePath
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	out, err := channel.OpenOutput(cfg.Fs, cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	opts := []channel.Option{
		channel.WithExclude(out.Path()),
		channel.WithClock(cfg.Clock),
	}
	if cfg.WatcherFactory != nil {
		opts = append(opts, channel.WithWatcherFactory(cfg.WatcherFactory))
	}
	in, err := channel.OpenInput(cfg.Fs, cfg.InputPath, opts...)
	if in == nil {
		_ = out.Close(false)
		return nil, err
	}
	if err != nil {
		slog.Warn("input not readable yet, waiting for peer", "path", in.Path(), "err", err)
	}

	return &Bridge{
		cfg:   cfg,
		clock: cfg.Clock,
		clip:  cfg.Clipboard,
		out:   out,
		in:    in,
		done:  make(chan struct{}),
		stats: stats{startedAt: cfg.Clock.Now()},
	}, nil
}

// Run executes sync cycles until Shutdown is called or ctx is cancelled,
// then empties the outbound file and releases both channels. Call it once.
func (b *Bridge) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, b.Shutdown)
	defer stop()

	waitCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-b.done
		cancel()
	}()

	slog.Info("bridge started",
		"in", b.in.Path(),
		"out", b.out.Path(),
		"clipboard", b.clip.Name(),
		"poll", b.cfg.PollInterval,
		"reopen", !b.cfg.NoRefresh,
	)

	for {
		b.cycle(waitCtx)
		if b.stopping.Load() {
			break
		}
	}

	slog.Info("shutting down bridge gracefully")
	return b.close()
}

// cycle runs one iteration. Nothing that goes wrong inside a cycle, a panic
// included, is allowed to end the loop.
func (b *Bridge) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sync cycle panicked", "panic", r)
		}
	}()

	changed := b.in.WaitForChange(ctx, b.cfg.PollInterval)
	metrics.RecordCycle(changed)
	b.statsMu.Lock()
	b.stats.cycles++
	b.statsMu.Unlock()

	b.Capture()
	if changed || b.retryApply {
		b.Apply()
	}
}

// Capture copies the local clipboard to the outbound file unless it is what
// was last received from or sent to the peer. It reports whether the file
// was written. Capture shares loop state and must not run concurrently
// with Run.
func (b *Bridge) Capture() bool {
	data, err := b.clip.Text()
	if err != nil {
		slog.Debug("clipboard read skipped", "err", err)
		metrics.RecordSkip(metrics.DirectionCapture, metrics.ReasonUnavailable)
		return false
	}
	if len(data) == 0 {
		metrics.RecordSkip(metrics.DirectionCapture, metrics.ReasonEmpty)
		return false
	}

	fp := FingerprintOf(data)
	if b.state.seen(fp) {
		metrics.RecordSkip(metrics.DirectionCapture, metrics.ReasonDuplicate)
		return false
	}

	if err := b.out.Write(data); err != nil {
		slog.Debug("outbound write failed", "path", b.out.Path(), "err", err)
		metrics.RecordSkip(metrics.DirectionCapture, skipReason(err))
		return false
	}
	b.state.lastSentToPeer = fp

	metrics.RecordCapture(len(data))
	b.statsMu.Lock()
	b.stats.captures++
	b.stats.lastCapture = b.clock.Now()
	b.statsMu.Unlock()
	logPayload("clipboard captured", b.out.Path(), data)
	return true
}

// Apply copies the inbound frame to the local clipboard unless it is what was
// last received from or sent to the peer. It reports whether the clipboard
// was written. Apply shares loop state and must not run concurrently with Run.
func (b *Bridge) Apply() bool {
	b.retryApply = false
	data, err := b.in.Read(!b.cfg.NoRefresh)
	if err != nil {
		// The peer may still hold the lock or be mid-write, and it will not
		// necessarily write again; try once more on the next cycle.
		b.retryApply = retryable(err)
		slog.Debug("inbound read skipped", "path", b.in.Path(), "err", err, "retry", b.retryApply)
		metrics.RecordSkip(metrics.DirectionApply, skipReason(err))
		return false
	}
	if len(data) == 0 {
		metrics.RecordSkip(metrics.DirectionApply, metrics.ReasonEmpty)
		return false
	}

	fp := FingerprintOf(data)
	if b.state.seen(fp) {
		metrics.RecordSkip(metrics.DirectionApply, metrics.ReasonDuplicate)
		return false
	}

	if err := b.clip.SetText(data); err != nil {
		b.retryApply = true
		slog.Debug("clipboard write skipped", "err", err)
		metrics.RecordSkip(metrics.DirectionApply, metrics.ReasonUnavailable)
		return false
	}
	b.state.lastSeenFromPeer = fp

	metrics.RecordApply(len(data))
	b.statsMu.Lock()
	b.stats.applies++
	b.stats.lastApply = b.clock.Now()
	b.statsMu.Unlock()
	logPayload("clipboard applied", b.in.Path(), data)
	return true
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, frame.ErrNegativeLength), errors.Is(err, frame.ErrTruncated):
		return metrics.ReasonCorrupt
	case errors.Is(err, frame.ErrEmpty):
		return metrics.ReasonEmpty
	case errors.Is(err, frame.ErrLocked):
		return metrics.ReasonLocked
	default:
		return metrics.ReasonIO
	}
}

// retryable reports whether a failed inbound read may succeed without the
// peer writing again. An empty or missing file, or a negative length, needs
// a new write, which the watcher reports.
func retryable(err error) bool {
	switch {
	case errors.Is(err, frame.ErrEmpty), errors.Is(err, frame.ErrNegativeLength):
		return false
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, channel.ErrClosed):
		return false
	default:
		return true
	}
}

// Remap points the input at path; "~" is expanded. It is safe to call while
// Run is active. Pointing the input at the output is refused and nothing
// changes. A path that does not exist yet is still adopted; the returned
// error then wraps fs.ErrNotExist.
func (b *Bridge) Remap(path string) error {
	if b.stopping.Load() {
		return ErrStopped
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		metrics.RecordRemap(false)
		return fmt.Errorf("expand %q: %w", path, err)
	}

	err = b.in.Rebind(expanded)
	if errors.Is(err, channel.ErrClosed) {
		// Shutdown won the race after the check above.
		return ErrStopped
	}
	if errors.Is(err, ErrSamePath) {
		metrics.RecordRemap(false)
		return err
	}
	metrics.RecordRemap(true)
	b.statsMu.Lock()
	b.stats.remaps++
	b.statsMu.Unlock()

	if err != nil {
		slog.Warn("input remapped, file not readable yet", "path", b.in.Path(), "err", err)
		return err
	}
	slog.Info("input remapped", "path", b.in.Path(), "dir", b.in.Dir())
	return nil
}

// Shutdown asks the loop to stop after its current cycle and wakes it if it
// is waiting. Further calls do nothing.
func (b *Bridge) Shutdown() {
	b.stopOnce.Do(func() {
		b.stopping.Store(true)
		close(b.done)
	})
}

// Done is closed once Shutdown has been requested.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// State returns the loop state.
func (b *Bridge) State() State {
	if b.stopping.Load() {
		return ShuttingDown
	}
	return Running
}

// InputPath returns the current input path.
func (b *Bridge) InputPath() string { return b.in.Path() }

// OutputPath returns the output path.
func (b *Bridge) OutputPath() string { return b.out.Path() }

// Status returns a snapshot for the control socket.
func (b *Bridge) Status() message.Status {
	b.statsMu.Lock()
	st := b.stats
	b.statsMu.Unlock()

	return message.Status{
		PID:          os.Getpid(),
		State:        b.State().String(),
		Input:        b.in.Path(),
		Output:       b.out.Path(),
		WatchedDir:   b.in.Dir(),
		Clipboard:    b.clip.Name(),
		Reopen:       !b.cfg.NoRefresh,
		PollInterval: b.cfg.PollInterval,
		StartedAt:    st.startedAt,
		Cycles:       st.cycles,
		Captures:     st.captures,
		Applies:      st.applies,
		Remaps:       st.remaps,
		LastCapture:  st.lastCapture,
		LastApply:    st.lastApply,
	}
}

func (b *Bridge) close() error {
	var errs []error
	if err := b.in.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close input: %w", err))
	}
	if err := b.out.Close(b.cfg.RemoveOnExit); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IsNotExist reports whether err means a file is missing, as returned by
// New's input handling or Remap.
func IsNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }
