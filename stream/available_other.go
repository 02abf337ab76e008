//go:build !linux

package stream

import "syscall"

// FDAvailable always reports zero where the input queue size cannot be queried.
func FDAvailable(rc syscall.RawConn) (int, error) {
	return 0, nil
}
