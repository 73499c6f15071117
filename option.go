package execenv

import (
	"log/slog"
)

// Option configures an Engine created by New.
type Option func(*engineOptions)

// engineOptions holds construction-time settings applied via Option functions.
type engineOptions struct {
	ambient     []string
	ambientSet  bool
	resolver    PathResolver
	source      ProcessSource
	containment ContainmentFunc
	startPID    int
	logger      *slog.Logger
}

// WithAmbient fixes the environment the Engine treats as its own. By
// default the live process environment (os.Environ) is read on every call.
func WithAmbient(env []string) Option {
	cpy := append([]string{}, env...)
	return func(o *engineOptions) {
		o.ambient = cpy
		o.ambientSet = true
	}
}

// WithResolver sets the collaborator used to locate bare command names.
func WithResolver(r PathResolver) Option {
	return func(o *engineOptions) {
		o.resolver = r
	}
}

// WithProcessSource replaces the proc filesystem as the source of
// ancestor records.
func WithProcessSource(s ProcessSource) Option {
	return func(o *engineOptions) {
		o.source = s
	}
}

// WithContainment overrides the containment predicate chosen by
// Config.Containment.
func WithContainment(fn ContainmentFunc) Option {
	return func(o *engineOptions) {
		o.containment = fn
	}
}

// WithStartPID starts ancestry walks at pid instead of the caller's parent.
func WithStartPID(pid int) Option {
	return func(o *engineOptions) {
		o.startPID = pid
	}
}

// WithLogger overrides Config.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
	}
}

func mergeOptions(opts ...Option) engineOptions {
	var o engineOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
