package frame

import (
	"errors"
	"time"
)

// ErrLocked is returned when the peer holds the header lock.
var ErrLocked = errors.New("frame: locked by another process")

const (
	lockAttempts = 3
	lockBackoff  = 10 * time.Millisecond
)

type fder interface {
	Fd() uintptr
}

// Lock takes an advisory lock on the header region of f, shared for readers
// and exclusive for writers, and returns the matching unlock function.
// Handles without a file descriptor (in-memory filesystems) are not locked.
// The lock is never waited on indefinitely: after a few short retries
// ErrLocked is returned and the caller skips the cycle.
func Lock(f File, exclusive bool) (func(), error) {
	fd, ok := f.(fder)
	if !ok {
		return func() {}, nil
	}
	h := fd.Fd()

	var err error
	for i := 0; i < lockAttempts; i++ {
		if i > 0 {
			time.Sleep(lockBackoff)
		}
		var held bool
		held, err = lockRegion(h, exclusive)
		if err != nil {
			return nil, err
		}
		if !held {
			return func() { _ = unlockRegion(h) }, nil
		}
	}
	return nil, ErrLocked
}
