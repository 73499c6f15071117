package execenv

import (
	"log/slog"
	"strings"

	"github.com/zhangyunhao116/execenv/internal/envutil"
)

// pathKey is the search-path variable carried over in prefix-merge mode.
const pathKey = "PATH"

// Mode is the environment reconstruction strategy used for external targets.
type Mode int

const (
	// StripMode removes the bundle's loader variables and marker from the
	// current environment.
	StripMode Mode = iota

	// PrefixMergeMode rebuilds the environment from the nearest pre-bundle
	// ancestor and re-injects the carry set.
	PrefixMergeMode
)

// String returns the string representation of a Mode.
func (m Mode) String() string {
	switch m {
	case StripMode:
		return "strip"
	case PrefixMergeMode:
		return "prefix-merge"
	default:
		return unknownStr
	}
}

// Policy builds the environment handed to a child process.
type Policy struct {
	// Marker is the bundle marker variable name. It is stripped in StripMode.
	Marker string

	// PreloadVar and LibraryPathVar name the loader variables stripped in
	// StripMode, together with any key they prefix. An empty name strips
	// nothing.
	PreloadVar     string
	LibraryPathVar string

	// PreservePrefix selects PrefixMergeMode when non-empty. Current
	// variables whose key starts with it are always propagated.
	PreservePrefix string

	// Ancestry supplies the base environment in PrefixMergeMode. Nil means
	// an AncestryReader over /proc using Marker.
	Ancestry *AncestryReader

	// Logger receives debug messages. Nil means slog.Default().
	Logger *slog.Logger
}

// Mode reports the strategy Build uses for external targets.
func (p *Policy) Mode() Mode {
	if p.PreservePrefix != "" {
		return PrefixMergeMode
	}
	return StripMode
}

// Build returns the environment for a child classified as c.
//
// For Internal, current itself is returned: nothing is copied and the
// caller's ownership of current is unchanged. For External a new owned
// Environment is returned and the caller must release it. Errors wrapping
// ErrAllocation are returned as is; the caller decides whether to fall back
// to current.
func (p *Policy) Build(current *Environment, c Classification) (*Environment, error) {
	if current == nil {
		return nil, ErrNilEnvironment
	}
	if current.released {
		return nil, ErrReleased
	}
	if c == Internal {
		return current, nil
	}

	if p.Mode() == PrefixMergeMode {
		return p.prefixMerge(current)
	}
	return p.strip(current)
}

// strip filters current, keeping order.
func (p *Policy) strip(current *Environment) (*Environment, error) {
	kept := envutil.Filter(current.entries, func(key string) bool {
		return !hasVarPrefix(key, p.PreloadVar) &&
			!hasVarPrefix(key, p.LibraryPathVar) &&
			(p.Marker == "" || key != p.Marker)
	})
	p.logger().Debug("strip mode", "before", len(current.entries), "after", len(kept))
	return NewEnvironment(kept...)
}

// prefixMerge assembles the nearest pre-bundle ancestor's environment
// without its PATH, followed by the carry set.
func (p *Policy) prefixMerge(current *Environment) (*Environment, error) {
	carry := envutil.Filter(current.entries, func(key string) bool {
		return strings.HasPrefix(key, p.PreservePrefix) || key == pathKey
	})

	var base []string
	ancestor, err := p.ancestry().Read()
	if err != nil {
		// Proceed with an empty base.
		p.logger().Debug("no ancestor environment, using carry set only", "err", err)
	} else {
		base = envutil.RemoveEnv(ancestor.entries, pathKey)
		_ = ancestor.Release()
	}

	env, err := Allocate(len(base) + len(carry))
	if err != nil {
		return nil, err
	}
	if err := env.Append(base...); err != nil {
		return nil, err
	}
	if err := env.Append(carry...); err != nil {
		return nil, err
	}
	p.logger().Debug("prefix-merge mode", "prefix", p.PreservePrefix, "base", len(base), "carry", len(carry))
	return env, nil
}

// hasVarPrefix reports whether key starts with name. An empty name matches
// nothing, so an unset field strips nothing.
func hasVarPrefix(key, name string) bool {
	return name != "" && strings.HasPrefix(key, name)
}

func (p *Policy) ancestry() *AncestryReader {
	if p.Ancestry != nil {
		return p.Ancestry
	}
	return &AncestryReader{Marker: p.Marker, Logger: p.Logger}
}

func (p *Policy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
