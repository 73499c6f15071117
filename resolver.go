package execenv

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// resolveTimeout bounds a single ShellResolver lookup.
const resolveTimeout = 5 * time.Second

// PathResolver locates a command the way a shell would. It is best-effort:
// when nothing is found the input is returned unchanged.
type PathResolver interface {
	ResolveInPath(name string) string
}

// ResolverFunc adapts a function to PathResolver.
type ResolverFunc func(name string) string

// ResolveInPath calls f(name).
func (f ResolverFunc) ResolveInPath(name string) string {
	return f(name)
}

// ShellResolver asks a shell for "command -v <name>".
type ShellResolver struct {
	// Shell is the shell to run. Empty means /bin/sh.
	Shell string

	// Env is the environment for the shell, which decides the PATH it
	// searches. Nil means the current process environment.
	Env []string
}

// ResolveInPath returns the first line printed by "command -v name", or
// name when the shell fails or prints nothing. The name is passed as a
// positional parameter and never interpolated into the script.
func (r ShellResolver) ResolveInPath(name string) string {
	if name == "" {
		return name
	}
	shell := r.Shell
	if shell == "" {
		shell = defaultShell
	}
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shell, "-c", `command -v -- "$1"`, "execenv-resolve", name)
	// The lookup shell runs with the caller's environment unchanged.
	cmd.Env = r.Env
	result, err := execHelper(cmd, 4096, Internal)
	if err != nil || result.ExitCode != 0 {
		return name
	}
	line, _, _ := strings.Cut(result.Stdout, "\n")
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return name
}

// PathListResolver searches a PATH-style directory list for an executable
// regular file, without starting a shell.
type PathListResolver struct {
	// Path is a list of directories separated by os.PathListSeparator.
	Path string
}

// ResolveInPath returns the first executable match for name in Path.
// Names containing a separator are returned unchanged.
func (r PathListResolver) ResolveInPath(name string) string {
	if name == "" || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	for _, dir := range filepath.SplitList(r.Path) {
		if dir == "" {
			// POSIX: an empty PATH element means the current directory.
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}
	return name
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
