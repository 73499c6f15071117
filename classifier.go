package execenv

import (
	"log/slog"

	"github.com/zhangyunhao116/execenv/internal/envutil"
	"github.com/zhangyunhao116/execenv/internal/pathutil"
)

// unknownStr is the string representation for unknown enum values.
const unknownStr = "unknown"

// Classification tells whether running a program keeps the process tree
// inside the bundle.
type Classification int

const (
	// Internal means the target stays inside the bundle and receives the
	// current environment unchanged. It is the zero value.
	Internal Classification = iota

	// External means the target escapes the bundle and receives a rebuilt
	// environment.
	External
)

// String returns the string representation of a Classification.
func (c Classification) String() string {
	switch c {
	case Internal:
		return "internal"
	case External:
		return "external"
	default:
		return unknownStr
	}
}

// ClassifyResult holds the outcome of a classification.
type ClassifyResult struct {
	// Classification is the decision.
	Classification Classification

	// Target is the program that was classified.
	Target string

	// Resolved is the path compared against the bundle root. It is empty
	// when no bundle context exists.
	Resolved string

	// Reason is a human-readable explanation of the decision.
	Reason string
}

// ContainmentFunc reports whether path counts as inside root.
type ContainmentFunc func(path, root string) bool

// LexicalContainment compares path and root over min(len(path), len(root))
// bytes. It matches sibling directories that share root as a literal prefix.
func LexicalContainment(path, root string) bool {
	return pathutil.HasLexicalPrefix(path, root)
}

// ComponentContainment accepts root itself and paths below it, comparing
// whole path components.
func ComponentContainment(path, root string) bool {
	return pathutil.IsWithin(path, root)
}

// Classifier decides whether a target program is internal or external to
// the bundle. Its result depends only on its fields and the filesystem, so
// repeated calls with unchanged inputs agree.
type Classifier struct {
	// Marker is the bundle marker variable name.
	Marker string

	// Ambient is the environment of the calling process.
	Ambient []string

	// Shells lists shells whose -c scripts are classified by command.
	Shells []string

	// Resolver locates targets that cannot be canonicalized. Nil means
	// targets are used verbatim.
	Resolver PathResolver

	// Contains is the containment predicate. Nil means LexicalContainment.
	Contains ContainmentFunc

	// Logger receives debug messages. Nil means slog.Default().
	Logger *slog.Logger
}

// Classify classifies target.
//
// Without the marker in Ambient every target is internal. Otherwise target
// is canonicalized; if that fails the Resolver is asked, and if that fails
// too target is used as is. The result is compared to the bundle root.
func (c *Classifier) Classify(target string) ClassifyResult {
	root, inBundle := envutil.GetEnv(c.Ambient, c.Marker)
	if !inBundle {
		return ClassifyResult{
			Classification: Internal,
			Target:         target,
			Reason:         c.Marker + " not set; no bundle to escape",
		}
	}

	resolved, how := c.resolve(target)
	contains := c.Contains
	if contains == nil {
		contains = LexicalContainment
	}

	result := ClassifyResult{Target: target, Resolved: resolved}
	if contains(resolved, root) {
		result.Classification = Internal
		result.Reason = how + " path is inside bundle root " + root
	} else {
		result.Classification = External
		result.Reason = how + " path is outside bundle root " + root
	}
	c.logger().Debug("classified", "target", target, "resolved", resolved, "class", result.Classification)
	return result
}

// ClassifyInvocation classifies the program an invocation really runs:
// the -c command for shell indirections, the path otherwise.
func (c *Classifier) ClassifyInvocation(inv Invocation) ClassifyResult {
	return c.Classify(inv.Target())
}

// ClassifyArgs normalizes path and argv with the classifier's shells and
// classifies the result.
func (c *Classifier) ClassifyArgs(path string, argv []string) ClassifyResult {
	return c.ClassifyInvocation(NormalizeInvocation(path, argv, c.Shells))
}

func (c *Classifier) resolve(target string) (string, string) {
	if canonical, err := pathutil.Canonicalize(target); err == nil {
		return canonical, "canonical"
	}
	if c.Resolver != nil {
		if found := c.Resolver.ResolveInPath(target); found != "" && found != target {
			return found, "resolved"
		}
	}
	return target, "verbatim"
}

func (c *Classifier) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
