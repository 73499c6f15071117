package execenv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/zhangyunhao116/execenv/internal/pathutil"
	"github.com/zhangyunhao116/execenv/internal/procfs"
)

const (
	// DefaultBundleMarker is the variable whose presence marks a process as
	// running inside the bundle. Its value is the bundle root.
	DefaultBundleMarker = "APPDIR"

	// DefaultPreloadVar is the dynamic loader's preload-injection variable.
	DefaultPreloadVar = "LD_PRELOAD"

	// DefaultLibraryPathVar is the dynamic loader's library-search-path variable.
	DefaultLibraryPathVar = "LD_LIBRARY_PATH"

	// DefaultPreserveMarker names the variable that selects prefix-merge
	// mode and carries the preserved prefix.
	DefaultPreserveMarker = "APPIMAGE_PRESERVE_ENV_PREFIX"

	// DefaultDebugVar enables debug logging in the CLI when set.
	DefaultDebugVar = "APPIMAGE_CHECKRT_DEBUG"

	// defaultShell is the shell used by System and recognized for -c indirection.
	defaultShell = "/bin/sh"

	// defaultInternalShell is the shell shipped inside the bundle, relative
	// to the bundle root.
	defaultInternalShell = "bin/sh"

	// defaultMaxOutputBytes is the default limit for captured stdout/stderr (10 MB).
	defaultMaxOutputBytes = 10 * 1024 * 1024
)

// Containment selects the predicate deciding whether a resolved path is
// inside the bundle root.
type Containment string

const (
	// ContainmentLexical compares the first min(len(path), len(root)) bytes.
	// A sibling such as /opt/AppOther counts as inside /opt/App.
	ContainmentLexical Containment = "lexical"

	// ContainmentComponent requires the path to be the root or below it,
	// comparing whole path components.
	ContainmentComponent Containment = "component"
)

// Func returns the predicate implementing c. Unknown values fall back to
// the lexical predicate.
func (c Containment) Func() ContainmentFunc {
	if c == ContainmentComponent {
		return ComponentContainment
	}
	return LexicalContainment
}

// Config holds the configuration for an Engine.
type Config struct {
	// BundleMarker is the name of the bundle-root marker variable.
	BundleMarker string `yaml:"bundle_marker"`

	// PreloadVar is stripped (with any key it prefixes) in strip mode.
	PreloadVar string `yaml:"preload_var"`

	// LibraryPathVar is stripped (with any key it prefixes) in strip mode.
	LibraryPathVar string `yaml:"library_path_var"`

	// PreserveMarker names the variable holding the preserved prefix.
	// A non-empty value in the ambient environment selects prefix-merge mode.
	PreserveMarker string `yaml:"preserve_marker"`

	// DebugVar names the variable that turns on debug logging in the CLI.
	DebugVar string `yaml:"debug_var"`

	// Containment selects the bundle containment predicate.
	Containment Containment `yaml:"containment"`

	// Shells lists shell paths whose "-c <command>" invocations are
	// classified by the command instead of the shell. The first entry is
	// the shell System uses for external commands.
	Shells []string `yaml:"shells"`

	// InternalShell is the bundle's own shell, relative to the bundle root.
	// Shell invocations classified as internal are redirected to it.
	InternalShell string `yaml:"internal_shell"`

	// ProcRoot is the proc filesystem mount point.
	ProcRoot string `yaml:"proc_root"`

	// MaxOutputBytes limits the stdout/stderr captured by System.
	// 0 means no limit.
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// Logger receives debug messages about classification and environment
	// building. If nil, slog.Default() is used.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a Config matching the AppImage conventions.
func DefaultConfig() *Config {
	return &Config{
		BundleMarker:   DefaultBundleMarker,
		PreloadVar:     DefaultPreloadVar,
		LibraryPathVar: DefaultLibraryPathVar,
		PreserveMarker: DefaultPreserveMarker,
		DebugVar:       DefaultDebugVar,
		Containment:    ContainmentLexical,
		Shells:         []string{defaultShell},
		InternalShell:  defaultInternalShell,
		ProcRoot:       procfs.DefaultRoot,
		MaxOutputBytes: defaultMaxOutputBytes,
	}
}

// LoadConfigFile reads a YAML configuration file and merges it over
// DefaultConfig. Fields absent from the file keep their defaults. The
// result is validated.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// LoadConfig is LoadConfigFile for an already opened reader.
func LoadConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	cfg := DefaultConfig()
	if err := mergo.Merge(cfg, file, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("%w: merge: %w", ErrConfigInvalid, err)
	}
	// mergo skips zero values, so a meaningful zero is applied by hand.
	var zeros explicitZeros
	if err := yaml.Unmarshal(data, &zeros); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if zeros.MaxOutputBytes != nil {
		cfg.MaxOutputBytes = *zeros.MaxOutputBytes
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// explicitZeros picks out the fields whose zero value differs from their
// default, to tell "absent" from "set to zero".
type explicitZeros struct {
	MaxOutputBytes *int `yaml:"max_output_bytes"`
}

// Validate checks the configuration for errors and returns a descriptive error
// if any field is invalid. The returned error wraps ErrConfigInvalid.
func (c *Config) Validate() error {
	var errs []string

	errs = validateVarName(errs, "BundleMarker", c.BundleMarker)
	errs = validateVarName(errs, "PreloadVar", c.PreloadVar)
	errs = validateVarName(errs, "LibraryPathVar", c.LibraryPathVar)
	errs = validateVarName(errs, "PreserveMarker", c.PreserveMarker)
	if c.DebugVar != "" {
		errs = validateVarName(errs, "DebugVar", c.DebugVar)
	}

	switch c.Containment {
	case ContainmentLexical, ContainmentComponent:
	default:
		errs = append(errs, fmt.Sprintf("Containment: unknown value %q", c.Containment))
	}

	if len(c.Shells) == 0 {
		errs = append(errs, "Shells: must list at least one shell")
	}
	for i, sh := range c.Shells {
		if !filepath.IsAbs(sh) {
			errs = append(errs, fmt.Sprintf("Shells[%d]: %q must be an absolute path", i, sh))
		}
	}

	if c.InternalShell == "" {
		errs = append(errs, "InternalShell: must not be empty")
	} else if filepath.IsAbs(c.InternalShell) {
		errs = append(errs, fmt.Sprintf("InternalShell: %q must be relative to the bundle root", c.InternalShell))
	}

	if c.ProcRoot != "" && !filepath.IsAbs(c.ProcRoot) {
		errs = append(errs, fmt.Sprintf("ProcRoot: %q must be an absolute path", c.ProcRoot))
	}

	if c.MaxOutputBytes < 0 {
		errs = append(errs, "MaxOutputBytes: must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// validateVarName checks that name can be used as an environment key.
func validateVarName(errs []string, field, name string) []string {
	switch {
	case name == "":
		return append(errs, field+": must not be empty")
	case strings.ContainsRune(name, '='):
		return append(errs, fmt.Sprintf("%s: %q must not contain '='", field, name))
	case pathutil.ContainsNullByte(name):
		return append(errs, fmt.Sprintf("%s: must not contain null bytes", field))
	}
	return errs
}

// deepCopyConfig returns a copy of cfg with all slice fields deep-copied
// to prevent aliasing. Logger is shared by reference.
func deepCopyConfig(cfg *Config) Config {
	cfgCopy := *cfg
	cfgCopy.Shells = append([]string{}, cfg.Shells...)
	return cfgCopy
}
