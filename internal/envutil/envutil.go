// Package envutil provides helpers for KEY=VALUE environment slices.
//
// Keys are compared byte-for-byte. Entries are never assumed to have unique
// keys: lookups return the first match, filters visit every entry.
package envutil

import (
	"strings"
)

// Key returns the key portion of a KEY=VALUE entry. An entry without '='
// is returned unchanged.
func Key(entry string) string {
	if idx := strings.IndexByte(entry, '='); idx >= 0 {
		return entry[:idx]
	}
	return entry
}

// Valid reports whether entry has the KEY=VALUE shape with a non-empty key.
func Valid(entry string) bool {
	idx := strings.IndexByte(entry, '=')
	return idx > 0
}

// GetEnv gets a value from an env slice.
// Returns the value and true if found, or empty string and false if not.
func GetEnv(env []string, key string) (string, bool) {
	prefix := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			return e[len(prefix):], true
		}
	}
	return "", false
}

// HasEnv reports whether key is present in env, with any value.
func HasEnv(env []string, key string) bool {
	_, ok := GetEnv(env, key)
	return ok
}

// RemoveEnv removes every entry whose key equals key.
// Returns a new slice; env is not modified.
func RemoveEnv(env []string, key string) []string {
	prefix := key + "="
	result := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, prefix) {
			result = append(result, e)
		}
	}
	return result
}

// RemoveEnvPrefix removes all variables with a given prefix from an env slice.
// The prefix is matched against the key portion (before '='), so
// RemoveEnvPrefix(env, "LD_PRELOAD") also drops LD_PRELOAD_64.
func RemoveEnvPrefix(env []string, prefix string) []string {
	return Filter(env, func(key string) bool {
		return !strings.HasPrefix(key, prefix)
	})
}

// Filter returns the entries of env whose key satisfies keep, in order.
func Filter(env []string, keep func(key string) bool) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		if keep(Key(e)) {
			result = append(result, e)
		}
	}
	return result
}
