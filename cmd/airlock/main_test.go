package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/airlock/internal/bridge"
	"go.klb.dev/airlock/internal/clip"
	"go.klb.dev/airlock/internal/message"
)

// bindRun parses args into a fresh run command and returns its viper
// instance, as PreRunE would.
func bindRun(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags(args))
	v := viper.New()
	require.NoError(t, bindViper(cmd, v))
	return v
}

func TestRunConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v := bindRun(t, "--config", "")

	rc, err := loadRunConfig(v, []string{"/share/a2b", "/share/b2a"})
	require.NoError(t, err)
	assert.Equal(t, "/share/a2b", rc.Input)
	assert.Equal(t, "/share/b2a", rc.Output)
	assert.Equal(t, clip.FormatText, rc.Format)
	assert.Equal(t, bridge.DefaultPollInterval, rc.PollInterval)
	assert.False(t, rc.NoRefresh)
	assert.False(t, rc.RemoveOnExit)
	assert.False(t, v.GetBool("debug"))
}

func TestRunConfigEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Run("prefixed", func(t *testing.T) {
		t.Setenv("AIRLOCK_NO_REFRESH", "true")
		t.Setenv("AIRLOCK_POLL_INTERVAL", "250ms")
		v := bindRun(t)
		rc, err := loadRunConfig(v, []string{"in", "out"})
		require.NoError(t, err)
		assert.True(t, rc.NoRefresh)
		assert.Equal(t, 250*time.Millisecond, rc.PollInterval)
	})

	t.Run("legacy", func(t *testing.T) {
		t.Setenv("BIDI_DEBUG", "1")
		t.Setenv("BIDI_NO_REFRESH", "1")
		t.Setenv("BIDI_CLIPBOARD_FORMAT", "8")
		t.Setenv("BIDI_CLIPBOARD_DEBUG", "true")
		v := bindRun(t)
		rc, err := loadRunConfig(v, []string{"in", "out"})
		require.NoError(t, err)
		assert.True(t, v.GetBool("debug"))
		assert.True(t, rc.NoRefresh)
		assert.Equal(t, clip.FormatImage, rc.Format)
		assert.True(t, rc.RemoveOnExit)
	})

	t.Run("legacy switches are set when present", func(t *testing.T) {
		t.Setenv("BIDI_DEBUG", "x")
		t.Setenv("BIDI_NO_REFRESH", "yes")
		t.Setenv("BIDI_CLIPBOARD_DEBUG", "")
		v := bindRun(t)
		rc, err := loadRunConfig(v, []string{"in", "out"})
		require.NoError(t, err)
		assert.True(t, v.GetBool("debug"))
		assert.True(t, rc.NoRefresh)
		assert.True(t, rc.RemoveOnExit)
	})

	t.Run("legacy switch yields to flag and prefixed env", func(t *testing.T) {
		t.Setenv("BIDI_NO_REFRESH", "on")
		t.Setenv("BIDI_DEBUG", "on")
		t.Setenv("AIRLOCK_DEBUG", "false")
		v := bindRun(t, "--no-refresh=false")
		rc, err := loadRunConfig(v, []string{"in", "out"})
		require.NoError(t, err)
		assert.False(t, rc.NoRefresh)
		assert.False(t, v.GetBool("debug"))
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("BIDI_CLIPBOARD_FORMAT", "image")
		v := bindRun(t, "--clipboard-format", "text")
		rc, err := loadRunConfig(v, []string{"in", "out"})
		require.NoError(t, err)
		assert.Equal(t, clip.FormatText, rc.Format)
	})
}

func TestRunConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := filepath.Join(t.TempDir(), "airlock.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
no-refresh = true
poll-interval = "2s"
metrics-addr = ":9464"
`), 0o600))

	v := bindRun(t, "--config", cfg)
	rc, err := loadRunConfig(v, []string{"in", "out"})
	require.NoError(t, err)
	assert.True(t, rc.NoRefresh)
	assert.Equal(t, 2*time.Second, rc.PollInterval)
	assert.Equal(t, ":9464", rc.MetricsAddr)
}

func TestRunConfigInvalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v := bindRun(t, "--clipboard-format", "rtf")
	_, err := loadRunConfig(v, []string{"in", "out"})
	assert.Error(t, err)

	v = bindRun(t, "--poll-interval", "0s")
	_, err = loadRunConfig(v, []string{"in", "out"})
	assert.Error(t, err)
}

func TestRunConfigExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	v := bindRun(t)
	rc, err := loadRunConfig(v, []string{"~/a2b", "~/b2a"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "a2b"), rc.Input)
	assert.Equal(t, filepath.Join(home, "b2a"), rc.Output)
}

type fakeRemapper struct {
	mu    sync.Mutex
	paths []string
	errs  map[string]error
	done  chan struct{}
}

func (f *fakeRemapper) Remap(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return f.errs[path]
}

func (f *fakeRemapper) Done() <-chan struct{} { return f.done }

func TestPromptRemap(t *testing.T) {
	r := &fakeRemapper{
		done: make(chan struct{}),
		errs: map[string]error{
			"/later": fmt.Errorf("open /later: %w", fs.ErrNotExist),
			"/out":   bridge.ErrSamePath,
			"/bad":   errors.New("boom"),
		},
	}
	in := strings.NewReader("/new\n\n  /later  \n/out\n/bad\n")
	var out bytes.Buffer

	finished := make(chan struct{})
	go func() {
		promptRemap(context.Background(), in, &out, r)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not return at EOF")
	}

	assert.Equal(t, []string{"/new", "/later", "/out", "/bad"}, r.paths, "blank lines are skipped")
	text := out.String()
	assert.Contains(t, text, "Remapped input to file: /new\n")
	assert.Contains(t, text, "/later (waiting for it to appear)")
	assert.Contains(t, text, "Error: /out is the output file")
	assert.Contains(t, text, "Error: boom")
}

func TestPromptRemapStopsOnShutdown(t *testing.T) {
	r := &fakeRemapper{done: make(chan struct{})}
	pr, pw := io.Pipe()
	defer pw.Close()

	finished := make(chan struct{})
	go func() {
		promptRemap(context.Background(), pr, &bytes.Buffer{}, r)
		close(finished)
	}()

	close(r.done)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not return after shutdown")
	}
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	st := &message.Status{
		PID:          1234,
		State:        "running",
		Input:        "/share/b2a",
		Output:       "/share/a2b",
		WatchedDir:   "/share",
		Clipboard:    "system (text)",
		Reopen:       true,
		PollInterval: time.Second,
		StartedAt:    now.Add(-5 * time.Minute),
		Captures:     3,
		LastCapture:  now.Add(-10 * time.Second),
	}

	var out bytes.Buffer
	printStatus(&out, st, "/run/user/1000/airlock.sock", now)
	text := out.String()

	assert.Contains(t, text, "running (pid 1234)")
	assert.Contains(t, text, "/share/b2a")
	assert.Contains(t, text, "5m ago")
	assert.Contains(t, text, "10s ago")
	assert.Regexp(t, `Applies\s+0\s+-`, text)
}

func TestFmtAge(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "-", fmtAge(time.Time{}, now))
	assert.Equal(t, "42s ago", fmtAge(now.Add(-42*time.Second), now))
	assert.Equal(t, "3m ago", fmtAge(now.Add(-3*time.Minute), now))
	assert.Equal(t, "13:04:05", fmtAge(now.Add(-2*time.Hour), now))
}

func TestVersion(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "airlock dev\n", out.String())
}
