package execenv

import "time"

// ExecResult holds the outcome of a command run by System.
type ExecResult struct {
	// ExitCode is the process exit code. 0 typically indicates success.
	ExitCode int

	// Stdout contains the captured standard output of the process.
	Stdout string

	// Stderr contains the captured standard error of the process.
	Stderr string

	// Duration is the wall-clock time the process took to execute.
	Duration time.Duration

	// Classification is how the command was classified.
	Classification Classification

	// Truncated indicates whether the output was truncated due to size limits.
	Truncated bool
}
