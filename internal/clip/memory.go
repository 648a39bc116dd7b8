package clip

import (
	"bytes"
	"sync"
)

// Memory is an in-process clipboard. It backs tests and lets two bridges in
// one process exchange data without a display.
type Memory struct {
	mu     sync.Mutex
	data   []byte
	has    bool
	writes int
	locked bool
}

// NewMemory returns an empty Memory clipboard.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Text() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked || !m.has {
		return nil, ErrUnavailable
	}
	return bytes.Clone(m.data), nil
}

func (m *Memory) SetText(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return ErrUnavailable
	}
	m.data = bytes.Clone(data)
	m.has = true
	m.writes++
	return nil
}

// Set is SetText for test setup; it does not count as a write.
func (m *Memory) Set(s string) {
	m.mu.Lock()
	m.data = []byte(s)
	m.has = true
	m.mu.Unlock()
}

// String returns the current contents as a string.
func (m *Memory) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data)
}

// Writes returns how many times SetText succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Lock makes every access fail with ErrUnavailable until Unlock, the way a
// clipboard held open by another application behaves.
func (m *Memory) Lock() {
	m.mu.Lock()
	m.locked = true
	m.mu.Unlock()
}

func (m *Memory) Unlock() {
	m.mu.Lock()
	m.locked = false
	m.mu.Unlock()
}

func (m *Memory) Close() {}
