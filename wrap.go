package execenv

import (
	"fmt"
	"os/exec"
)

// Wrap prepares cmd the way a process-creation hook would before the real
// call. It must be called before cmd is started.
//
// The program is classified from cmd.Path and cmd.Args, looking through
// "sh -c" indirection. External programs get cmd.Env replaced by a rebuilt
// environment. An internal shell indirection is redirected to the bundle's
// own shell, since the bundle's libraries may not suit the host shell.
//
// On error cmd is left unchanged, so the caller can still run it with the
// original environment.
func (e *Engine) Wrap(cmd *exec.Cmd) (ClassifyResult, error) {
	if cmd == nil {
		return ClassifyResult{}, ErrNilCommand
	}
	if len(cmd.Args) == 0 {
		return ClassifyResult{}, fmt.Errorf("%w: cmd.Args must not be empty", ErrNilCommand)
	}

	inv := e.Normalize(cmd.Path, cmd.Args)
	result := e.ClassifyInvocation(inv)

	switch result.Classification {
	case External:
		current := e.AmbientEnvironment()
		if cmd.Env != nil {
			current = Ambient(cmd.Env)
		}
		env, err := e.BuildEnvironment(current, External)
		if err != nil {
			return result, err
		}
		cmd.Env = env.Entries()
		_ = env.Release()
	case Internal:
		if inv.ShellIndirect {
			if root, ok := e.BundleRoot(); ok {
				cmd.Path = e.internalShell(root)
			}
		}
	}
	e.logger.Debug("wrapped command", "path", cmd.Path, "target", result.Target, "class", result.Classification)
	return result, nil
}
