package execenv

import (
	"context"
	"fmt"
	"os/exec"
)

// System runs command through "sh -c" like system(3), choosing the shell
// and environment from the classification of the command's first word.
//
// External commands run under the host shell (the first of Config.Shells)
// with a rebuilt environment. Internal commands run under the bundle's own
// shell with the ambient environment; outside a bundle the host shell is
// used. A non-zero exit status is reported in the result, not as an error.
func (e *Engine) System(ctx context.Context, command string) (*ExecResult, error) {
	target := firstWord(command)
	if target == "" {
		return nil, fmt.Errorf("%w: empty command", ErrNilCommand)
	}
	result := e.Classify(target)

	shell := e.cfg.Shells[0]
	current := e.AmbientEnvironment()
	env := current.Entries()

	switch result.Classification {
	case External:
		built, err := e.BuildEnvironment(current, External)
		if err != nil {
			return nil, err
		}
		env = built.Entries()
		_ = built.Release()
	case Internal:
		if root, ok := e.BundleRoot(); ok {
			shell = e.internalShell(root)
		}
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Args[0] = "sh"
	cmd.Env = env
	e.logger.Debug("system", "command", command, "shell", shell, "class", result.Classification)

	res, err := execHelper(cmd, e.cfg.MaxOutputBytes, result.Classification)
	if err != nil {
		return nil, fmt.Errorf("system %q: %w", command, err)
	}
	return res, nil
}
