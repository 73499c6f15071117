package execenv

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zhangyunhao116/execenv/internal/procfs"
)

// ProcessSource provides the per-process records read by the ancestry walk.
// NewProcSource returns the procfs-backed implementation.
type ProcessSource interface {
	// InitialEnviron returns the environment pid was created with. A
	// partially parsed record is returned together with an error wrapping
	// ErrMalformedRecord.
	InitialEnviron(pid int) ([]string, error)

	// ParentPID returns the parent process id of pid.
	ParentPID(pid int) (int, error)
}

// NewProcSource returns a ProcessSource reading a proc filesystem mounted at
// root. An empty root means /proc.
func NewProcSource(root string) ProcessSource {
	return procSource{fs: procfs.New(root)}
}

// procSource adapts procfs.FS so malformed records surface as
// ErrMalformedRecord to callers outside this module.
type procSource struct {
	fs procfs.FS
}

func (s procSource) InitialEnviron(pid int) ([]string, error) {
	env, err := s.fs.InitialEnviron(pid)
	if err != nil && errors.Is(err, procfs.ErrMalformed) {
		return env, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return env, err
}

func (s procSource) ParentPID(pid int) (int, error) {
	return s.fs.ParentPID(pid)
}

// AncestryLink is one step up the process tree.
type AncestryLink struct {
	// PID is the ancestor process id.
	PID int

	// PPID is the parent of PID. It is only looked up for bundled
	// ancestors, so it is 0 for the ancestor that ended the walk.
	PPID int

	// Bundled reports whether the ancestor's initial environment carried
	// the bundle marker.
	Bundled bool
}

// AncestryReader recovers the initial environment of the nearest ancestor
// process that was not started from inside the bundle.
//
// Nothing is cached: every Read walks the current process tree again.
type AncestryReader struct {
	// Source supplies process records. Nil means NewProcSource("").
	Source ProcessSource

	// Marker is the bundle marker variable name, e.g. "APPDIR".
	Marker string

	// StartPID is the first process examined. Zero means the parent of the
	// calling process.
	StartPID int

	// Logger receives debug messages about each step. Nil means slog.Default().
	Logger *slog.Logger
}

// Read walks up from StartPID and returns the initial environment of the
// first ancestor without Marker. The returned Environment is owned by the
// caller.
//
// If the walk reaches pid 1, revisits a pid, or fails to read a record
// before finding such an ancestor, Read returns an error matching
// ErrAncestryUnavailable and no Environment.
func (r *AncestryReader) Read() (*Environment, error) {
	w := r.walk()
	for {
		pid, env, ok := w.next()
		if !ok {
			return nil, w.err
		}
		if !env.Has(r.Marker) {
			r.logger().Debug("ancestor outside bundle", "pid", pid, "entries", len(env.entries))
			return env, nil
		}
		// Release before reading the next ancestor: one Environment live at a time.
		_ = env.Release()
		r.logger().Debug("ancestor inside bundle, continuing", "pid", pid, "marker", r.Marker)
		if _, ok := w.advance(); !ok {
			return nil, w.err
		}
	}
}

// Chain walks up from StartPID like Read but returns the links visited
// instead of the environment. The final link is the first non-bundled
// ancestor when one was found; otherwise the error explains why the walk
// stopped.
func (r *AncestryReader) Chain() ([]AncestryLink, error) {
	w := r.walk()
	var links []AncestryLink
	for {
		pid, env, ok := w.next()
		if !ok {
			return links, w.err
		}
		bundled := env.Has(r.Marker)
		_ = env.Release()
		if !bundled {
			return append(links, AncestryLink{PID: pid}), nil
		}
		ppid, ok := w.advance()
		links = append(links, AncestryLink{PID: pid, PPID: ppid, Bundled: true})
		if !ok {
			return links, w.err
		}
	}
}

func (r *AncestryReader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *AncestryReader) walk() *ancestryWalk {
	source := r.Source
	if source == nil {
		source = NewProcSource("")
	}
	start := r.StartPID
	if start == 0 {
		start = parentPID()
	}
	w := &ancestryWalk{
		source: source,
		pid:    start,
		seen:   make(map[int]struct{}),
		logger: r.logger(),
	}
	if !procSupported && r.Source == nil {
		w.stop(&AncestryError{PID: start, Op: "walk", Err: errors.ErrUnsupported})
	}
	return w
}

// ancestryWalk is a finite, non-restartable sequence of ancestors. It ends
// at pid 1, at the first read failure, or when a pid repeats, so the number
// of steps never exceeds the depth of the process tree.
type ancestryWalk struct {
	source ProcessSource
	pid    int
	seen   map[int]struct{}
	done   bool
	err    error
	logger *slog.Logger
}

// next reads the initial environment of the current pid. The returned
// Environment is owned by the caller.
func (w *ancestryWalk) next() (int, *Environment, bool) {
	if w.done {
		return 0, nil, false
	}
	if w.pid <= 1 {
		w.stop(&AncestryError{PID: w.pid, Op: "walk"})
		return 0, nil, false
	}
	if _, dup := w.seen[w.pid]; dup {
		w.stop(&AncestryError{PID: w.pid, Op: "walk", Err: fmt.Errorf("pid %d visited twice", w.pid)})
		return 0, nil, false
	}
	w.seen[w.pid] = struct{}{}

	entries, err := w.source.InitialEnviron(w.pid)
	if err != nil {
		if !isMalformed(err) {
			w.stop(&AncestryError{PID: w.pid, Op: "environ", Err: err})
			return 0, nil, false
		}
		// Keep what was parsed before the malformed entry.
		w.logger.Debug("partial ancestor environment", "pid", w.pid, "entries", len(entries), "err", err)
	}
	env, err := NewEnvironment(entries...)
	if err != nil {
		w.stop(&AncestryError{PID: w.pid, Op: "environ", Err: err})
		return 0, nil, false
	}
	return w.pid, env, true
}

// advance moves to the parent of the current pid and returns it.
func (w *ancestryWalk) advance() (int, bool) {
	ppid, err := w.source.ParentPID(w.pid)
	if err != nil {
		w.stop(&AncestryError{PID: w.pid, Op: "stat", Err: err})
		return 0, false
	}
	w.pid = ppid
	return ppid, true
}

func isMalformed(err error) bool {
	return errors.Is(err, ErrMalformedRecord) || errors.Is(err, procfs.ErrMalformed)
}

func (w *ancestryWalk) stop(err error) {
	w.done = true
	w.err = err
	if err != nil {
		w.logger.Debug("ancestry walk stopped", "err", err, "gone", procfs.IsGone(err))
	}
}
