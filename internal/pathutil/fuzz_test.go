package pathutil

import (
	"testing"
)

// FuzzContainment exercises both containment predicates with arbitrary
// inputs. Neither may panic, and component-aware containment must never
// accept a path the lexical check rejects when both are absolute.
func FuzzContainment(f *testing.F) {
	seeds := [][2]string{
		{"/opt/App/bin/sh", "/opt/App"},
		{"/opt/AppOther", "/opt/App"},
		{"", ""},
		{"/", "/"},
		{"ls", "/opt/App"},
		{"/opt/App/../x", "/opt/App"},
	}
	for _, s := range seeds {
		f.Add(s[0], s[1])
	}

	f.Fuzz(func(t *testing.T, path, root string) {
		lexical := HasLexicalPrefix(path, root)
		within := IsWithin(path, root)
		if within && !lexical && path == root {
			t.Errorf("IsWithin(%q, %q) accepted an identical path that HasLexicalPrefix rejected", path, root)
		}
	})
}
