package execenv

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zhangyunhao116/execenv/internal/envutil"
)

// Engine answers the two questions a process-creation hook asks: is the
// target internal or external to the bundle, and what environment should
// it receive.
//
// An Engine holds only immutable configuration. Every call reads the
// ambient environment and, when needed, the process tree again, so an
// Engine is safe for concurrent use.
type Engine struct {
	cfg         Config
	ambient     []string
	ambientSet  bool
	resolver    PathResolver
	source      ProcessSource
	containment ContainmentFunc
	startPID    int
	logger      *slog.Logger
}

// New creates an Engine. A nil cfg means DefaultConfig. The configuration
// is validated and copied.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfgCopy := deepCopyConfig(cfg)
	o := mergeOptions(opts...)

	e := &Engine{
		cfg:         cfgCopy,
		ambient:     o.ambient,
		ambientSet:  o.ambientSet,
		resolver:    o.resolver,
		source:      o.source,
		containment: o.containment,
		startPID:    o.startPID,
		logger:      o.logger,
	}
	if e.logger == nil {
		e.logger = cfgCopy.Logger
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.source == nil {
		e.source = NewProcSource(cfgCopy.ProcRoot)
	}
	if e.containment == nil {
		e.containment = cfgCopy.Containment.Func()
	}
	return e, nil
}

// Config returns a copy of the Engine's configuration.
func (e *Engine) Config() Config {
	return deepCopyConfig(&e.cfg)
}

// AmbientEnvironment returns the Engine's view of the current process
// environment. It is ambient: the caller must not release it.
func (e *Engine) AmbientEnvironment() *Environment {
	return Ambient(e.ambientEntries())
}

// BundleRoot returns the value of the bundle marker, and whether it is set.
func (e *Engine) BundleRoot() (string, bool) {
	return envutil.GetEnv(e.ambientEntries(), e.cfg.BundleMarker)
}

// Classifier returns a Classifier bound to the current ambient environment.
func (e *Engine) Classifier() *Classifier {
	ambient := e.ambientEntries()
	resolver := e.resolver
	if resolver == nil {
		resolver = ShellResolver{Shell: e.cfg.Shells[0], Env: ambient}
	}
	return &Classifier{
		Marker:   e.cfg.BundleMarker,
		Ambient:  ambient,
		Shells:   e.cfg.Shells,
		Resolver: resolver,
		Contains: e.containment,
		Logger:   e.logger,
	}
}

// Ancestry returns an AncestryReader configured like the one Policy uses.
func (e *Engine) Ancestry() *AncestryReader {
	return &AncestryReader{
		Source:   e.source,
		Marker:   e.cfg.BundleMarker,
		StartPID: e.startPID,
		Logger:   e.logger,
	}
}

// Policy returns a Policy bound to the current ambient environment. The
// preserved prefix is read from Config.PreserveMarker.
func (e *Engine) Policy() *Policy {
	prefix, _ := envutil.GetEnv(e.ambientEntries(), e.cfg.PreserveMarker)
	return &Policy{
		Marker:         e.cfg.BundleMarker,
		PreloadVar:     e.cfg.PreloadVar,
		LibraryPathVar: e.cfg.LibraryPathVar,
		PreservePrefix: prefix,
		Ancestry:       e.Ancestry(),
		Logger:         e.logger,
	}
}

// Classify classifies a target path.
func (e *Engine) Classify(target string) ClassifyResult {
	return e.Classifier().Classify(target)
}

// ClassifyInvocation classifies an invocation whose shell indirection has
// already been normalized, e.g. by NormalizeInvocation.
func (e *Engine) ClassifyInvocation(inv Invocation) ClassifyResult {
	return e.Classifier().ClassifyInvocation(inv)
}

// Normalize applies NormalizeInvocation with the configured shells.
func (e *Engine) Normalize(path string, argv []string) Invocation {
	return NormalizeInvocation(path, argv, e.cfg.Shells)
}

// BuildEnvironment returns the environment for a child classified as c.
// Internal children get current back unchanged; external children get a
// new owned Environment that the caller releases after the child has been
// created.
func (e *Engine) BuildEnvironment(current *Environment, c Classification) (*Environment, error) {
	env, err := e.Policy().Build(current, c)
	if err != nil {
		return nil, fmt.Errorf("build %s environment: %w", c, err)
	}
	return env, nil
}

// internalShell returns the bundle's shell for root.
func (e *Engine) internalShell(root string) string {
	return filepath.Join(root, e.cfg.InternalShell)
}

func (e *Engine) ambientEntries() []string {
	if e.ambientSet {
		return e.ambient
	}
	return os.Environ()
}
