//go:build !unix

package execenv

import "os/exec"

func setupProcessGroup(cmd *exec.Cmd) {}
