package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/zhangyunhao116/execenv"
)

func runClassify(a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("classify: missing program")
	}
	result := a.engine.Classifier().ClassifyArgs(args[0], args)
	fmt.Fprintf(a.stdout, "%s\t%s\n", result.Classification, result.Target)
	fmt.Fprintf(a.stdout, "reason: %s\n", result.Reason)
	return nil
}

func envFlags(fs *pflag.FlagSet, a *app) {
	fs.BoolVarP(&a.null, "null", "0", false, "end each entry with NUL instead of newline")
}

func runEnv(a *app, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("env: unexpected argument %q", args[0])
	}
	env, err := a.engine.BuildEnvironment(a.engine.AmbientEnvironment(), execenv.External)
	if err != nil {
		return err
	}
	defer func() { _ = env.Release() }()

	sep := "\n"
	if a.null {
		sep = "\x00"
	}
	for _, entry := range env.Entries() {
		fmt.Fprint(a.stdout, entry, sep)
	}
	a.logger.Debug("environment built", "mode", a.engine.Policy().Mode(), "entries", len(env.Entries()))
	return nil
}

func runAncestry(a *app, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("ancestry: unexpected argument %q", args[0])
	}
	links, err := a.engine.Ancestry().Chain()
	for _, link := range links {
		state := "outside"
		if link.Bundled {
			state = "bundled"
		}
		fmt.Fprintf(a.stdout, "%d\t%s\n", link.PID, state)
	}
	if err != nil {
		fmt.Fprintf(a.stdout, "walk stopped: %v\n", err)
		return &exitError{code: 1}
	}
	return nil
}

func runExec(a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("exec: missing program")
	}
	cmd := exec.Command(args[0], args[1:]...)
	if cmd.Err != nil {
		return cmd.Err
	}
	if _, err := a.engine.Wrap(cmd); err != nil {
		a.logger.Warn("keeping the current environment", "err", err)
	}
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	return unix.Exec(cmd.Path, cmd.Args, env)
}

func runSystem(a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("system: expected exactly one command string")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := a.engine.System(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, result.Stdout)
	fmt.Fprint(a.stderr, result.Stderr)
	switch {
	case result.ExitCode < 0:
		// Killed by a signal.
		return &exitError{code: 1}
	case result.ExitCode != 0:
		return &exitError{code: result.ExitCode}
	}
	return nil
}

func runVersion(a *app, _ []string) error {
	fmt.Fprintf(a.stdout, "execenv %s\n", version)
	return nil
}
