//go:build darwin || linux || windows

package clip

import (
	"log/slog"
	"sync"

	"golang.design/x/clipboard"
)

type systemBackend struct {
	mu  sync.Mutex
	fmt clipboard.Format
}

// New returns the system clipboard backend for format f, or a headless no-op
// backend if the display environment is unavailable. clipboard.Init is
// called here rather than in init() so that control sub-commands (remap,
// status, stop) never touch the display.
func New(f Format) Access {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return headlessBackend{}
	}
	b := &systemBackend{fmt: clipboard.FmtText}
	if f == FormatImage {
		b.fmt = clipboard.FmtImage
	}
	return b
}

func (b *systemBackend) Name() string {
	if b.fmt == clipboard.FmtImage {
		return "system clipboard (image)"
	}
	return "system clipboard (text)"
}

func (b *systemBackend) Text() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data := clipboard.Read(b.fmt)
	if data == nil {
		return nil, ErrUnavailable
	}
	return data, nil
}

func (b *systemBackend) SetText(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if clipboard.Write(b.fmt, data) == nil {
		return ErrUnavailable
	}
	return nil
}

func (b *systemBackend) Close() {}
