// Package dirwatch reports writes inside a single directory.
//
// Notifications are single-shot: any number of filesystem events between two
// waits collapse into one pending signal, and consuming that signal re-arms
// the watcher for the next one.
package dirwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
)

// Watcher waits for changes in one directory.
type Watcher interface {
	// WaitForChange blocks for at most timeout and reports whether anything
	// in the directory was written in the meantime. It returns false early
	// when ctx is cancelled or the watcher is closed.
	WaitForChange(ctx context.Context, timeout time.Duration) bool

	// Dir returns the watched directory.
	Dir() string

	Close() error
}

// relevant is the set of operations that can mean new file contents.
const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Notify is a Watcher backed by fsnotify.
type Notify struct {
	dir   string
	w     *fsnotify.Watcher
	clock clockwork.Clock

	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New starts watching dir. It fails when the directory does not exist or the
// platform refuses another watch.
func New(dir string, clock clockwork.Clock) (*Notify, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		if cerr := w.Close(); cerr != nil {
			slog.Warn("failed to close directory watcher", "err", cerr)
		}
		return nil, fmt.Errorf("watch %q: %w", dir, err)
	}
	n := &Notify{
		dir:    dir,
		w:      w,
		clock:  clock,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go n.loop()
	return n, nil
}

func (n *Notify) loop() {
	for {
		select {
		case ev, ok := <-n.w.Events:
			if !ok {
				return
			}
			if !ev.Has(relevant) {
				continue
			}
			select {
			case n.signal <- struct{}{}:
			default:
			}
		case err, ok := <-n.w.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Dropped events still mean something changed.
				select {
				case n.signal <- struct{}{}:
				default:
				}
				continue
			}
			slog.Debug("directory watcher error", "dir", n.dir, "err", err)
		}
	}
}

func (n *Notify) WaitForChange(ctx context.Context, timeout time.Duration) bool {
	t := n.clock.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-n.signal:
		return true
	case <-t.Chan():
		return false
	case <-n.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (n *Notify) Dir() string { return n.dir }

// Close stops the watcher. Pending waits return false.
func (n *Notify) Close() error {
	var err error
	n.once.Do(func() {
		close(n.done)
		err = n.w.Close()
	})
	return err
}

// Sleeper stands in for a watcher when the directory cannot be watched. It
// sleeps for the full timeout and never reports a change.
type Sleeper struct {
	dir   string
	clock clockwork.Clock

	done chan struct{}
	once sync.Once
}

// NewSleeper returns a Sleeper for dir.
func NewSleeper(dir string, clock clockwork.Clock) *Sleeper {
	return &Sleeper{dir: dir, clock: clock, done: make(chan struct{})}
}

func (s *Sleeper) WaitForChange(ctx context.Context, timeout time.Duration) bool {
	t := s.clock.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-t.Chan():
	case <-s.done:
	case <-ctx.Done():
	}
	return false
}

func (s *Sleeper) Dir() string { return s.dir }

func (s *Sleeper) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Open watches dir with fsnotify and falls back to a Sleeper when that is
// not possible, so callers always get a usable Watcher.
func Open(dir string, clock clockwork.Clock) Watcher {
	n, err := New(dir, clock)
	if err != nil {
		slog.Warn("directory watch unavailable, falling back to polling", "dir", dir, "err", err)
		return NewSleeper(dir, clock)
	}
	return n
}
