//go:build windows

package frame

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

func lockRegion(fd uintptr, exclusive bool) (held bool, err error) {
	flags := uint32(windows.LOCKFILE_FAIL_IMMEDIATELY)
	if exclusive {
		flags |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	ol := new(windows.Overlapped)
	err = windows.LockFileEx(windows.Handle(fd), flags, 0, HeaderSize, 0, ol)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, windows.ERROR_LOCK_VIOLATION):
		return true, nil
	default:
		return false, fmt.Errorf("LockFileEx: %w", err)
	}
}

func unlockRegion(fd uintptr) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(fd), 0, HeaderSize, 0, ol)
}
