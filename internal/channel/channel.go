// Package channel owns the two file-backed endpoints of a bridge: the
// outbound file this side writes and the inbound file the peer writes.
package channel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"

	"go.klb.dev/airlock/internal/frame"
)

// ErrSamePath is returned when the input would point at the output file,
// which would feed every capture straight back into the local clipboard.
var ErrSamePath = errors.New("input and output files cannot be the same")

// ErrClosed is returned by an Input used after Close.
var ErrClosed = errors.New("input closed")

// SamePath reports whether a and b name the same file once made absolute.
func SamePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a, b = absPath(a), absPath(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Output is the outbound endpoint. It is only touched by the sync loop and
// carries no locking of its own.
type Output struct {
	fs   afero.Fs
	path string
	file afero.File
}

// OpenOutput creates path, or truncates it if it already exists. A failure
// here means the bridge cannot run.
func OpenOutput(fs afero.Fs, path string) (*Output, error) {
	path = absPath(path)
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", path, err)
	}
	return &Output{fs: fs, path: path, file: f}, nil
}

// Path returns the absolute output path.
func (o *Output) Path() string { return o.path }

// Write replaces the output file with a frame holding payload.
func (o *Output) Write(payload []byte) error {
	unlock, err := frame.Lock(o.file, true)
	if err != nil {
		return err
	}
	defer unlock()
	return frame.Encode(o.file, payload)
}

// Close empties the output file so nothing stale is left in the airlock,
// then closes it. With remove set the file is deleted as well.
func (o *Output) Close(remove bool) error {
	var errs []error
	if err := o.file.Truncate(0); err != nil {
		errs = append(errs, fmt.Errorf("truncate output: %w", err))
	}
	if err := o.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}
	if remove {
		if err := o.fs.Remove(o.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove output: %w", err))
		}
	}
	return errors.Join(errs...)
}
