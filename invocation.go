package execenv

import (
	"path/filepath"
	"strings"

	"github.com/zhangyunhao116/execenv/internal/pathutil"
)

// Invocation describes a process-creation request after shell indirection
// has been normalized.
type Invocation struct {
	// Path is the program the caller asked to run.
	Path string

	// Args is the argument vector, Args[0] included.
	Args []string

	// ShellIndirect is set when Path is a known shell run as
	// "sh -c <command>". RealCommand then holds the program the shell will
	// run.
	ShellIndirect bool

	// RealCommand is the first word of the -c script when ShellIndirect is
	// set, and Path otherwise.
	RealCommand string
}

// Target returns the program that decides the classification.
func (inv Invocation) Target() string {
	if inv.ShellIndirect {
		return inv.RealCommand
	}
	return inv.Path
}

// NormalizeInvocation inspects path and argv and, when path is one of
// shells invoked as "<shell> -c <command> ...", extracts the real command.
//
// A bare shell name (as passed to execvp) matches a listed shell with the
// same base name.
func NormalizeInvocation(path string, argv []string, shells []string) Invocation {
	inv := Invocation{
		Path:        path,
		Args:        argv,
		RealCommand: path,
	}
	if len(argv) < 3 || argv[1] != "-c" || !isShell(path, shells) {
		return inv
	}
	command := firstWord(argv[2])
	if command == "" {
		return inv
	}
	inv.ShellIndirect = true
	inv.RealCommand = command
	return inv
}

// firstWord returns the program name of a shell command line.
func firstWord(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// isShell reports whether path names one of shells: the same path, a bare
// name equal to a shell's base name, or a path resolving to the same file.
// exec.LookPath turns "sh" into /usr/bin/sh on merged-/usr systems, where
// /bin/sh is the same file.
func isShell(path string, shells []string) bool {
	bare := !strings.ContainsRune(path, filepath.Separator)
	for _, sh := range shells {
		if path == sh {
			return true
		}
		if bare && path == filepath.Base(sh) {
			return true
		}
	}
	if bare {
		return false
	}
	resolved, err := pathutil.Canonicalize(path)
	if err != nil {
		return false
	}
	for _, sh := range shells {
		if target, err := pathutil.Canonicalize(sh); err == nil && target == resolved {
			return true
		}
	}
	return false
}
