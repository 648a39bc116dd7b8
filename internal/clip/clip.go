// Package clip gives the bridge access to the local system clipboard.
// Build constraints select the implementation:
//
//	clip_system.go: macOS, Linux and Windows via golang.design/x/clipboard
//	clip_other.go:  every other platform, headless only
//
// A headless backend is also returned on supported platforms when no display
// is reachable (containers, servers without X11 or Wayland).
package clip

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnavailable is returned when the clipboard cannot be read or written
// right now: it is empty, holds another format, or another application owns it.
var ErrUnavailable = errors.New("clipboard unavailable")

// Access is the clipboard capability the bridge consumes. Implementations
// hold the clipboard only for the duration of a single call.
type Access interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Text returns the clipboard contents in the configured format.
	Text() ([]byte, error)

	// SetText replaces the clipboard contents.
	SetText(data []byte) error

	// Close releases any resources held by the backend.
	Close()
}

// Format selects which clipboard representation is read and written.
type Format int

const (
	FormatText Format = iota
	FormatImage
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatImage:
		return "image"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

// Legacy Windows clipboard format identifiers accepted by ParseFormat.
const (
	cfText        = 1
	cfBitmap      = 2
	cfOEMText     = 7
	cfDIB         = 8
	cfUnicodeText = 13
	cfDIBV5       = 17
)

// ParseFormat accepts "text", "image", or a numeric Windows clipboard format
// identifier as used by older bridge configurations. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "string":
		return FormatText, nil
	case "image", "png", "img":
		return FormatImage, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("unknown clipboard format %q", s)
	}
	switch n {
	case cfText, cfOEMText, cfUnicodeText:
		return FormatText, nil
	case cfBitmap, cfDIB, cfDIBV5:
		return FormatImage, nil
	default:
		return 0, fmt.Errorf("unsupported clipboard format id %d", n)
	}
}

// headlessBackend is used where no clipboard is reachable. Reads always
// report ErrUnavailable and writes are dropped.
type headlessBackend struct{}

func (headlessBackend) Name() string           { return "headless (no-op)" }
func (headlessBackend) Text() ([]byte, error)  { return nil, ErrUnavailable }
func (headlessBackend) SetText(_ []byte) error { return nil }
func (headlessBackend) Close()                 {}
