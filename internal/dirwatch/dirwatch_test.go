package dirwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyReportsWrite(t *testing.T) {
	dir := t.TempDir()
	n, err := New(dir, clockwork.NewRealClock())
	require.NoError(t, err)
	defer n.Close()

	assert.Equal(t, dir, n.Dir())
	assert.False(t, n.WaitForChange(context.Background(), 20*time.Millisecond))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b2a.0"), []byte("x"), 0o600))
	assert.True(t, n.WaitForChange(context.Background(), 2*time.Second))
}

func TestNotifyRearms(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b2a.0")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	n, err := New(dir, clockwork.NewRealClock())
	require.NoError(t, err)
	defer n.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o600))
		assert.True(t, n.WaitForChange(context.Background(), 2*time.Second), "write %d", i)

		// Drain anything the write produced beyond the first event.
		for n.WaitForChange(context.Background(), 50*time.Millisecond) {
		}
	}
}

func TestNotifyMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "gone"), clockwork.NewRealClock())
	assert.Error(t, err)
}

func TestNotifyCloseWakesWaiter(t *testing.T) {
	n, err := New(t.TempDir(), clockwork.NewRealClock())
	require.NoError(t, err)

	res := make(chan bool)
	go func() { res <- n.WaitForChange(context.Background(), time.Minute) }()

	require.NoError(t, n.Close())
	select {
	case got := <-res:
		assert.False(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForChange did not return after Close")
	}
	assert.NoError(t, n.Close())
}

func TestSleeper(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSleeper("/nowhere", clock)

	res := make(chan bool)
	go func() { res <- s.WaitForChange(context.Background(), time.Second) }()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	select {
	case <-res:
		t.Fatal("Sleeper returned before the timeout elapsed")
	default:
	}

	clock.Advance(time.Second)
	assert.False(t, <-res)
}

func TestSleeperCancel(t *testing.T) {
	s := NewSleeper("/nowhere", clockwork.NewFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.WaitForChange(ctx, time.Hour))
}

func TestOpenFallsBack(t *testing.T) {
	w := Open(filepath.Join(t.TempDir(), "missing"), clockwork.NewFakeClock())
	defer w.Close()
	_, ok := w.(*Sleeper)
	assert.True(t, ok)
}
