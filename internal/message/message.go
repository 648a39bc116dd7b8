// Package message defines the airlock control protocol spoken over the local
// IPC socket between a running bridge and the remap/status/stop commands.
//
// All messages are newline-delimited JSON. Each message is exactly one line:
// <json>\n
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of message.
type Type string

const (
	TypeRemap          Type = "REMAP"
	TypeStatus         Type = "STATUS"
	TypeStatusResponse Type = "STATUS_RESPONSE"
	TypeShutdown       Type = "SHUTDOWN"
	TypeOK             Type = "OK"
	TypeError          Type = "ERROR"
)

// Status describes a running bridge.
type Status struct {
	PID          int           `json:"pid"`
	State        string        `json:"state"`
	Input        string        `json:"input"`
	Output       string        `json:"output"`
	WatchedDir   string        `json:"watched_dir"`
	Clipboard    string        `json:"clipboard"`
	Reopen       bool          `json:"reopen"`
	PollInterval time.Duration `json:"poll_interval"`
	StartedAt    time.Time     `json:"started_at"`
	Cycles       uint64        `json:"cycles"`
	Captures     uint64        `json:"captures"`
	Applies      uint64        `json:"applies"`
	Remaps       uint64        `json:"remaps"`
	LastCapture  time.Time     `json:"last_capture"`
	LastApply    time.Time     `json:"last_apply"`
}

// Message is the top-level wire envelope.
type Message struct {
	Type Type `json:"type"`

	// REMAP: the new input path
	Path string `json:"path,omitempty"`

	// STATUS_RESPONSE
	Status *Status `json:"status,omitempty"`

	// ERROR
	Error string `json:"error,omitempty"`
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("message decode: missing type")
	}
	return &m, nil
}

// Err returns the message's error as a Go error, or nil.
func (m *Message) Err() error {
	if m.Type != TypeError {
		return nil
	}
	if m.Error == "" {
		return fmt.Errorf("remote error")
	}
	return fmt.Errorf("%s", m.Error)
}

// NewError builds an ERROR reply for err.
func NewError(err error) *Message {
	return &Message{Type: TypeError, Error: err.Error()}
}
