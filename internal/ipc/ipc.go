// Package ipc locates and opens the local control socket a running airlock
// bridge listens on. The remap, status and stop commands dial it; the run
// command probes it to refuse starting a second bridge.
package ipc

import (
	"net"
	"os"
)

// SocketPath returns the control socket path. $AIRLOCK_SOCKET overrides the
// platform default:
//
//   - Linux / macOS: $XDG_RUNTIME_DIR/airlock.sock, else $TMPDIR/airlock.sock
//   - Windows:       \\.\pipe\airlock
func SocketPath() string {
	if s := os.Getenv("AIRLOCK_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether something is answering on the control socket.
// It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := Dial()
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on the control socket, removing any stale socket
// file left by a crashed run first. Callers check IsRunning beforehand.
func Listen() (net.Listener, error) {
	return listenIPC(SocketPath())
}

// Dial connects to the control socket.
func Dial() (net.Conn, error) {
	return dialIPC(SocketPath())
}
