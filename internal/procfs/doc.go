// Package procfs reads per-process records from a Linux proc filesystem.
//
// Two records are used:
//
//   - /proc/<pid>/environ - the environment the process was created with,
//     as NUL-separated KEY=VALUE entries. Runtime setenv calls inside the
//     process do not show up here.
//   - /proc/<pid>/stat - status metadata; only the parent pid is extracted.
//
// The root directory is configurable so tests can build synthetic trees.
// A process that has exited between lookups is reported with an error for
// which IsGone returns true; callers treat that as an ordinary outcome.
package procfs
