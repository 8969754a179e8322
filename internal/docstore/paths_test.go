package docstore

import (
	"path/filepath"
	"testing"
)

func TestSanitizeSessionID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"session1", "session1"},
		{"Parent.Child.Grand", "Parent.Child.Grand"},
		{"a_b-c.d", "a_b-c.d"},
		{"a/b", "a_b"},
		{"a b:c", "a_b_c"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"", ""},
		// Each byte outside the allowed set is replaced, so a two-byte
		// UTF-8 rune becomes two underscores.
		{"héllo", "h__llo"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeSessionID(tt.in); got != tt.want {
				t.Errorf("SanitizeSessionID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	base := filepath.Join("tmp", "proj")
	if got, want := CollectionDir(base, "notes"), filepath.Join(base, ".research", "notes"); got != want {
		t.Errorf("CollectionDir = %q, want %q", got, want)
	}
	if got, want := IndexPath(base, "notes"), filepath.Join(base, ".research", "notes-index.json"); got != want {
		t.Errorf("IndexPath = %q, want %q", got, want)
	}
	if got, want := SessionFilePath(base, "notes", "a/b"), filepath.Join(base, ".research", "notes", "a_b-notes.json"); got != want {
		t.Errorf("SessionFilePath = %q, want %q", got, want)
	}
}
