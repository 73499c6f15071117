//go:build !linux

package execenv

import "os"

// procSupported reports whether the default proc source can be read.
// Per-process initial environments are only exposed by Linux procfs.
const procSupported = false

func parentPID() int {
	return os.Getppid()
}
