// execenv inspects and applies the environment rules used for programs
// launched from inside an application bundle.
//
// Subcommands:
//
//	classify <program> [args...]   report whether program is internal or external
//	env                            print the environment an external program gets
//	ancestry                       show the ancestor chain used in prefix-merge mode
//	exec <program> [args...]       replace this process with program
//	system <command>               run command through sh -c
//	version                        print the version
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/zhangyunhao116/execenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "execenv: %v\n", err)
		os.Exit(1)
	}
}

// exitError carries a child's exit status out of run.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func (e *exitError) ExitCode() int { return e.code }

// commandFunc runs one subcommand with its already-parsed arguments.
type commandFunc func(app *app, args []string) error

type command struct {
	name    string
	summary string
	flags   func(fs *pflag.FlagSet, app *app)
	run     commandFunc
}

var commands = []command{
	{name: "classify", summary: "report whether a program is internal or external", run: runClassify},
	{name: "env", summary: "print the environment an external program gets", flags: envFlags, run: runEnv},
	{name: "ancestry", summary: "show the ancestor chain used in prefix-merge mode", run: runAncestry},
	{name: "exec", summary: "replace this process with a program", run: runExec},
	{name: "system", summary: "run a command through sh -c", run: runSystem},
	{name: "version", summary: "print the version", run: runVersion},
}

// app holds the state shared by all subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
	engine *execenv.Engine

	configPath  string
	containment string
	procRoot    string
	startPID    int
	debug       bool

	null bool
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return &exitError{code: 2}
	}
	switch args[0] {
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	case "--version":
		args = []string{"version"}
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	a := &app{stdout: stdout, stderr: stderr}
	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVar(&a.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&a.containment, "containment", "", "bundle containment rule: lexical or component")
	fs.StringVar(&a.procRoot, "proc-root", "", "proc filesystem mount point")
	fs.IntVar(&a.startPID, "pid", 0, "start the ancestry walk at this pid instead of the parent")
	fs.BoolVar(&a.debug, "debug", false, "log classification and environment decisions")
	if cmd.flags != nil {
		cmd.flags(fs, a)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &exitError{code: 2}
	}

	if cmd.name != "version" {
		if err := a.setup(); err != nil {
			return err
		}
	}
	return cmd.run(a, fs.Args())
}

// setup loads the configuration and creates the Engine.
func (a *app) setup() error {
	cfg := execenv.DefaultConfig()
	if a.configPath != "" {
		loaded, err := execenv.LoadConfigFile(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.containment != "" {
		cfg.Containment = execenv.Containment(a.containment)
	}
	if a.procRoot != "" {
		cfg.ProcRoot = a.procRoot
	}

	_, debugEnv := os.LookupEnv(cfg.DebugVar)
	a.logger = newLogger(a.stderr, a.debug || (cfg.DebugVar != "" && debugEnv))
	cfg.Logger = a.logger

	var opts []execenv.Option
	if a.startPID != 0 {
		opts = append(opts, execenv.WithStartPID(a.startPID))
	}
	engine, err := execenv.New(cfg, opts...)
	if err != nil {
		return err
	}
	a.engine = engine
	return nil
}

// newLogger returns a slog.Logger backed by a charmbracelet logger on w.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "execenv",
	})
	if debug {
		handler.SetLevel(log.DebugLevel)
	} else {
		handler.SetLevel(log.WarnLevel)
	}
	return slog.New(handler)
}

func printUsage(w io.Writer) {
	var b strings.Builder
	b.WriteString("Usage: execenv <command> [flags] [args...]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-10s %s\n", c.name, c.summary)
	}
	b.WriteString("\nCommon flags:\n")
	b.WriteString("  --config string       YAML configuration file\n")
	b.WriteString("  --containment string  bundle containment rule: lexical or component\n")
	b.WriteString("  --proc-root string    proc filesystem mount point\n")
	b.WriteString("  --pid int             start the ancestry walk at this pid\n")
	b.WriteString("  --debug               log classification and environment decisions\n")
	fmt.Fprint(w, b.String())
}
