//go:build !windows

package ipc

import (
	"net"
	"os"
	"path/filepath"
	"time"
)

const dialTimeout = 2 * time.Second

func socketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "airlock.sock")
	}
	return filepath.Join(os.TempDir(), "airlock.sock")
}

func listenIPC(path string) (net.Listener, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	// Owner only; the socket can redirect the bridge to any file.
	_ = os.Chmod(path, 0o600)
	return ln, nil
}

func dialIPC(path string) (net.Conn, error) {
	return net.DialTimeout("unix", path, dialTimeout)
}
