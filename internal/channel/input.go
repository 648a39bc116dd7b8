package channel

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"go.klb.dev/airlock/internal/dirwatch"
	"go.klb.dev/airlock/internal/frame"
)

// WatcherFactory builds the directory watcher for an input's parent directory.
type WatcherFactory func(dir string) dirwatch.Watcher

// Option configures an Input.
type Option func(*Input)

// WithExclude sets the path the input may never be bound to (the output).
func WithExclude(path string) Option {
	return func(in *Input) { in.exclude = path }
}

// WithWatcherFactory replaces the fsnotify-backed directory watcher.
func WithWatcherFactory(f WatcherFactory) Option {
	return func(in *Input) { in.newWatcher = f }
}

// WithClock sets the clock used by the default watcher factory.
func WithClock(c clockwork.Clock) Option {
	return func(in *Input) { in.clock = c }
}

// Input is the inbound endpoint. It may be rebound to another file while the
// sync loop is using it; path, handle, directory and watcher always change
// together under mu.
type Input struct {
	fs         afero.Fs
	exclude    string
	clock      clockwork.Clock
	newWatcher WatcherFactory

	mu      sync.Mutex
	path    string
	file    afero.File
	dir     string
	watcher dirwatch.Watcher
	pending bool // report a change on the next wait
	closed  bool
}

// OpenInput binds a new Input to path. The returned Input is usable even
// when the file does not exist yet: err then wraps fs.ErrNotExist and the
// file is opened on a later Read, once the peer has created it. Only
// ErrSamePath yields a nil Input.
func OpenInput(fs afero.Fs, path string, opts ...Option) (*Input, error) {
	in := &Input{fs: fs}
	for _, o := range opts {
		o(in)
	}
	if in.clock == nil {
		in.clock = clockwork.NewRealClock()
	}
	if in.newWatcher == nil {
		clock := in.clock
		in.newWatcher = func(dir string) dirwatch.Watcher { return dirwatch.Open(dir, clock) }
	}
	if SamePath(path, in.exclude) {
		return nil, ErrSamePath
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	return in, in.bindLocked(path)
}

// Rebind points the input at path. The watcher is only replaced when the
// parent directory changes. When path equals the excluded output nothing
// changes and ErrSamePath is returned. A missing file still rebinds; the
// error wraps fs.ErrNotExist.
func (in *Input) Rebind(path string) error {
	if SamePath(path, in.exclude) {
		return ErrSamePath
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.bindLocked(path)
}

func (in *Input) bindLocked(path string) error {
	if in.closed {
		return ErrClosed
	}
	in.closeFileLocked()
	in.path = absPath(path)

	dir := filepath.Dir(in.path)
	if in.watcher == nil || dir != in.dir {
		if in.watcher != nil {
			if err := in.watcher.Close(); err != nil {
				slog.Debug("close directory watcher", "dir", in.dir, "err", err)
			}
		}
		in.dir = dir
		in.watcher = in.newWatcher(dir)
	}
	in.pending = true
	return in.openLocked()
}

func (in *Input) openLocked() error {
	f, err := in.fs.Open(in.path)
	if err != nil {
		return fmt.Errorf("open input %q: %w", in.path, err)
	}
	in.file = f
	return nil
}

func (in *Input) closeFileLocked() {
	if in.file == nil {
		return
	}
	if err := in.file.Close(); err != nil {
		slog.Debug("close input", "path", in.path, "err", err)
	}
	in.file = nil
}

// Read decodes the frame currently in the input file. With reopen set the
// handle is closed and opened again first, so a network filesystem client
// cannot serve cached contents. A missing handle is always reopened.
func (in *Input) Read(reopen bool) ([]byte, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return nil, ErrClosed
	}
	if reopen || in.file == nil {
		in.closeFileLocked()
		if err := in.openLocked(); err != nil {
			return nil, err
		}
	}

	unlock, err := frame.Lock(in.file, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return frame.Decode(in.file)
}

// WaitForChange waits on the current directory watcher. The lock is only
// held to pick the watcher, so a Rebind during the wait closes the old
// watcher and wakes the waiter instead of blocking behind it.
func (in *Input) WaitForChange(ctx context.Context, timeout time.Duration) bool {
	in.mu.Lock()
	if in.pending {
		in.pending = false
		in.mu.Unlock()
		return true
	}
	w := in.watcher
	if w == nil {
		w = dirwatch.NewSleeper(in.dir, in.clock)
	}
	in.mu.Unlock()
	return w.WaitForChange(ctx, timeout)
}

// Path returns the absolute path the input is bound to.
func (in *Input) Path() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.path
}

// Dir returns the watched directory.
func (in *Input) Dir() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.dir
}

// Close releases the handle and the watcher. Later Rebind and Read calls
// fail with ErrClosed.
func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	in.closeFileLocked()
	if in.watcher == nil {
		return nil
	}
	err := in.watcher.Close()
	in.watcher = nil
	return err
}
