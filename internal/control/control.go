// Package control serves and calls the airlock control protocol: one
// request per connection over the local IPC socket.
package control

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"time"

	"go.klb.dev/airlock/internal/ipc"
	"go.klb.dev/airlock/internal/message"
	"go.klb.dev/airlock/internal/wire"
)

const requestTimeout = 5 * time.Second

// ErrNotRunning is returned by Client calls when nothing answers on the
// control socket.
var ErrNotRunning = errors.New("no running airlock bridge")

// Target is what a control request acts on. *bridge.Bridge satisfies it.
type Target interface {
	Remap(path string) error
	Status() message.Status
	Shutdown()
}

// Serve accepts connections on ln until ctx is cancelled or ln is closed.
// It closes ln when ctx is done.
func Serve(ctx context.Context, ln net.Listener, t Target) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("control accept: %w", err)
		}
		go handle(conn, t)
	}
}

func handle(conn net.Conn, t Target) {
	defer conn.Close()
	wc := wire.New(conn)
	wc.SetReadDeadline(requestTimeout)

	msg, err := wc.ReadMsg()
	if err != nil {
		slog.Debug("control: bad request", "err", err)
		return
	}
	wc.SetReadDeadline(0)

	if err := wc.WriteMsg(Dispatch(msg, t)); err != nil {
		slog.Debug("control: reply failed", "type", msg.Type, "err", err)
	}
}

// Dispatch applies one request to t and returns the reply.
func Dispatch(msg *message.Message, t Target) *message.Message {
	switch msg.Type {
	case message.TypeRemap:
		if msg.Path == "" {
			return message.NewError(errors.New("remap: empty path"))
		}
		slog.Info("control: remap requested", "path", msg.Path)
		err := t.Remap(msg.Path)
		switch {
		case err == nil:
			return &message.Message{Type: message.TypeOK}
		case errors.Is(err, fs.ErrNotExist):
			// Adopted anyway; the note travels with the OK.
			return &message.Message{Type: message.TypeOK, Error: err.Error()}
		default:
			return message.NewError(err)
		}

	case message.TypeStatus:
		st := t.Status()
		return &message.Message{Type: message.TypeStatusResponse, Status: &st}

	case message.TypeShutdown:
		slog.Info("control: shutdown requested")
		t.Shutdown()
		return &message.Message{Type: message.TypeOK}

	default:
		return message.NewError(fmt.Errorf("unknown request type %q", msg.Type))
	}
}

// Dialer opens a connection to the control socket.
type Dialer func() (net.Conn, error)

// Client sends control requests to a running bridge.
type Client struct {
	dial Dialer
}

// NewClient returns a Client for the default control socket.
func NewClient() *Client { return &Client{dial: ipc.Dial} }

// NewClientWithDialer returns a Client that connects with dial.
func NewClientWithDialer(dial Dialer) *Client { return &Client{dial: dial} }

// Remap asks the bridge to read from path. If the bridge switched but the
// file does not exist yet, the error wraps fs.ErrNotExist.
func (c *Client) Remap(path string) error {
	reply, err := c.roundTrip(&message.Message{Type: message.TypeRemap, Path: path})
	if err != nil {
		return err
	}
	if reply.Error != "" {
		return fmt.Errorf("%s: %w", reply.Error, fs.ErrNotExist)
	}
	return nil
}

// Status fetches the bridge's status.
func (c *Client) Status() (*message.Status, error) {
	reply, err := c.roundTrip(&message.Message{Type: message.TypeStatus})
	if err != nil {
		return nil, err
	}
	if reply.Type != message.TypeStatusResponse || reply.Status == nil {
		return nil, fmt.Errorf("unexpected reply %q", reply.Type)
	}
	return reply.Status, nil
}

// Shutdown asks the bridge to stop.
func (c *Client) Shutdown() error {
	_, err := c.roundTrip(&message.Message{Type: message.TypeShutdown})
	return err
}

func (c *Client) roundTrip(req *message.Message) (*message.Message, error) {
	conn, err := c.dial()
	if err != nil {
		// %v: a missing socket must not read as a missing input file.
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	wc := wire.New(conn)
	defer wc.Close()

	if err := wc.WriteMsg(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Type, err)
	}
	wc.SetReadDeadline(requestTimeout)
	reply, err := wc.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return reply, nil
}
