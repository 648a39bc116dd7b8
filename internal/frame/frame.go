// Package frame implements the on-disk framing used for clipboard payloads
// exchanged through the airlock.
//
// A frame is a 4-byte length header in native byte order, read back as a
// signed 32-bit integer, immediately followed by exactly that many payload
// bytes:
//
//	[ int32 length ][ payload ... ]
//
// Every write truncates the file first so a shorter payload never leaves
// stale bytes from a longer one behind it.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// HeaderSize is the size of the length header in bytes.
const HeaderSize = 4

var (
	// ErrNegativeLength is returned when the header decodes to a negative length.
	ErrNegativeLength = errors.New("frame: negative length")
	// ErrTruncated is returned when fewer payload bytes are present than declared.
	ErrTruncated = errors.New("frame: truncated payload")
	// ErrEmpty is returned when the file holds no frame at all.
	ErrEmpty = errors.New("frame: empty file")
	// ErrTooLarge is returned when a payload does not fit the 32-bit header.
	ErrTooLarge = errors.New("frame: payload too large")
	// ErrShortWrite is returned when a write makes no progress.
	ErrShortWrite = errors.New("frame: short write")
)

// File is the subset of a file handle the codec needs. Both *os.File and
// afero.File satisfy it.
type File interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Sync() error
}

type stater interface {
	Stat() (os.FileInfo, error)
}

// Encode replaces the contents of f with a single frame holding payload.
func Encode(f File, payload []byte) error {
	if len(payload) > math.MaxInt32 {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	var hdr [HeaderSize]byte
	binary.NativeEndian.PutUint32(hdr[:], uint32(int32(len(payload))))
	if err := writeFull(f, hdr[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writeFull(f, payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// Decode reads the frame stored in f and returns its payload.
func Decode(f File) ([]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short header", ErrTruncated)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	n := int32(binary.NativeEndian.Uint32(hdr[:]))
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeLength, n)
	}

	// Refuse to allocate for a length the file cannot possibly hold.
	if s, ok := f.(stater); ok {
		if fi, err := s.Stat(); err == nil && fi.Size()-HeaderSize < int64(n) {
			return nil, fmt.Errorf("%w: header says %d, file holds %d", ErrTruncated, n, fi.Size()-HeaderSize)
		}
	}

	buf := make([]byte, n)
	got, err := io.ReadFull(f, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: read %d of %d bytes", ErrTruncated, got, n)
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return buf, nil
}

// writeFull keeps writing until p is drained. A write that reports no
// progress without an error is treated as a failure.
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		p = p[n:]
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrShortWrite
		}
	}
	return nil
}
