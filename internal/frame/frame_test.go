package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "frame.0"), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"short text", []byte("hello")},
		{"exactly 256", bytes.Repeat([]byte("a"), 256)},
		{"large", []byte(strings.Repeat("clipboard ", 10_000))},
		{"binary", []byte{0x00, 0xff, 0x10, 0x00, 0x7f}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := openTemp(t)
			require.NoError(t, Encode(f, test.payload))

			fi, err := f.Stat()
			require.NoError(t, err)
			assert.Equal(t, int64(HeaderSize+len(test.payload)), fi.Size())

			got, err := Decode(f)
			require.NoError(t, err)
			assert.Equal(t, len(test.payload), len(got))
			assert.True(t, bytes.Equal(test.payload, got))
		})
	}
}

func TestEncodeTruncatesStaleTail(t *testing.T) {
	f := openTemp(t)
	require.NoError(t, Encode(f, []byte(strings.Repeat("x", 1000))))
	require.NoError(t, Encode(f, []byte("hi")))

	fi, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(HeaderSize+2), fi.Size())

	got, err := Decode(f)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestDecodeNegativeLength(t *testing.T) {
	f := openTemp(t)
	_, err := f.Write([]byte{0xff, 0xff, 0xff, 0xff, 'b', 'a', 'd'})
	require.NoError(t, err)

	_, err = Decode(f)
	assert.ErrorIs(t, err, ErrNegativeLength)
}

func TestDecodeTruncated(t *testing.T) {
	f := openTemp(t)
	var hdr [HeaderSize]byte
	binary.NativeEndian.PutUint32(hdr[:], 10)
	_, err := f.Write(append(hdr[:], "abc"...))
	require.NoError(t, err)

	_, err = Decode(f)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeShortHeader(t *testing.T) {
	f := openTemp(t)
	_, err := f.Write([]byte{0x01, 0x00})
	require.NoError(t, err)

	_, err = Decode(f)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeEmptyFile(t *testing.T) {
	f := openTemp(t)
	_, err := Decode(f)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMemMapFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := fs.OpenFile("/airlock/a2b.0", os.O_RDWR|os.O_CREATE, 0o600)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, Encode(f, []byte("in memory")))
	got, err := Decode(f)
	require.NoError(t, err)
	assert.Equal(t, "in memory", string(got))

	unlock, err := Lock(f, true)
	require.NoError(t, err)
	unlock()
}

func TestLockOsFile(t *testing.T) {
	f := openTemp(t)
	unlock, err := Lock(f, true)
	require.NoError(t, err)
	require.NoError(t, Encode(f, []byte("locked")))
	unlock()

	unlock, err = Lock(f, false)
	require.NoError(t, err)
	got, err := Decode(f)
	unlock()
	require.NoError(t, err)
	assert.Equal(t, "locked", string(got))
}

// stutterWriter accepts at most max bytes per call.
type stutterWriter struct {
	bytes.Buffer
	max int
}

func (w *stutterWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		p = p[:w.max]
	}
	return w.Buffer.Write(p)
}

type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }

func TestWriteFull(t *testing.T) {
	w := &stutterWriter{max: 3}
	require.NoError(t, writeFull(w, []byte("partial writes drain")))
	assert.Equal(t, "partial writes drain", w.String())

	err := writeFull(stuckWriter{}, []byte("x"))
	assert.ErrorIs(t, err, ErrShortWrite)

	failing := writerFunc(func(p []byte) (int, error) { return 1, io.ErrClosedPipe })
	err = writeFull(failing, []byte("xyz"))
	assert.True(t, errors.Is(err, io.ErrClosedPipe))
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
