//go:build unix

package frame

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// lockRegion reports held=true when another process owns a conflicting lock.
func lockRegion(fd uintptr, exclusive bool) (held bool, err error) {
	lk := unix.Flock_t{Start: 0, Len: HeaderSize}
	lk.Type = unix.F_RDLCK
	if exclusive {
		lk.Type = unix.F_WRLCK
	}
	err = unix.FcntlFlock(fd, unix.F_SETLK, &lk)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EACCES):
		return true, nil
	case errors.Is(err, unix.ENOLCK), errors.Is(err, unix.EOPNOTSUPP), errors.Is(err, unix.EINVAL):
		// Some network mounts do not implement byte-range locks.
		return false, nil
	default:
		return false, fmt.Errorf("fcntl lock: %w", err)
	}
}

func unlockRegion(fd uintptr) error {
	lk := unix.Flock_t{Start: 0, Len: HeaderSize}
	lk.Type = unix.F_UNLCK
	return unix.FcntlFlock(fd, unix.F_SETLK, &lk)
}
