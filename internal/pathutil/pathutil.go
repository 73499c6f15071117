// Package pathutil provides path canonicalization and containment checks
// used to decide whether a program lives inside a bundle directory.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Canonicalize returns the absolute, symlink-resolved form of path.
// Like realpath(3) it fails when any component of path does not exist.
func Canonicalize(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("pathutil: empty path")
	}
	if ContainsNullByte(path) {
		return "", fmt.Errorf("pathutil: path %q contains a null byte", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("pathutil: cannot make %q absolute: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("pathutil: cannot resolve symlinks: %w", err)
	}
	return resolved, nil
}

// HasLexicalPrefix compares path and root over the first
// min(len(path), len(root)) bytes and reports whether they are equal.
//
// The comparison knows nothing about path components: "/opt/AppOther/tool"
// matches root "/opt/App", and so does the shorter "/opt".
func HasLexicalPrefix(path, root string) bool {
	n := min(len(path), len(root))
	return path[:n] == root[:n]
}

// IsWithin reports whether path is root itself or lies below it, comparing
// whole path components after cleaning both sides.
func IsWithin(path, root string) bool {
	p := filepath.Clean(path)
	r := filepath.Clean(root)
	if p == r {
		return true
	}
	// When root is "/", every absolute path is within it.
	if r == string(filepath.Separator) {
		return strings.HasPrefix(p, r)
	}
	return strings.HasPrefix(p, r+string(filepath.Separator))
}

// ContainsNullByte returns true if the string contains a null byte.
func ContainsNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00')
}
