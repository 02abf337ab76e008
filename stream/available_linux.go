//go:build linux

package stream

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// FDAvailable returns the number of bytes readable from the descriptor without blocking.
func FDAvailable(rc syscall.RawConn) (int, error) {
	var (
		n     int
		opErr error
	)
	err := rc.Control(func(fd uintptr) {
		n, opErr = unix.IoctlGetInt(int(fd), unix.TIOCINQ)
	})
	if err != nil {
		return 0, err
	}
	if opErr != nil {
		return 0, opErr
	}
	return n, nil
}
