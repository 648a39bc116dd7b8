//go:build windows

package ipc

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

const (
	pipeName    = `\\.\pipe\airlock`
	dialTimeout = 2 * time.Second
)

func socketPath() string { return pipeName }

func listenIPC(path string) (net.Listener, error) {
	return winio.ListenPipe(path, nil)
}

func dialIPC(path string) (net.Conn, error) {
	timeout := dialTimeout
	return winio.DialPipe(path, &timeout)
}
