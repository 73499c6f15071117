//go:build linux

package execenv

import "golang.org/x/sys/unix"

// procSupported reports whether the default proc source can be read.
const procSupported = true

func parentPID() int {
	return unix.Getppid()
}
