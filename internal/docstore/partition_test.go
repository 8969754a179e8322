package docstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPartitionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1-notes.json")
	raws := []json.RawMessage{
		json.RawMessage(`{"id":"N-s1-001","sessionId":"s1","status":"open"}`),
	}
	if err := writePartitionFile(path, "notes", "s1", raws); err != nil {
		t.Fatal(err)
	}

	got, meta, warn, err := readPartitionFile(path, "notes")
	if err != nil {
		t.Fatal(err)
	}
	if warn != nil {
		t.Fatalf("warn = %v, want nil", warn)
	}
	if meta.SessionID != "s1" {
		t.Errorf("SessionID = %q, want %q", meta.SessionID, "s1")
	}
	if meta.CreatedAt.IsZero() || meta.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
	if len(got) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(got))
	}
}

func TestPartitionCreatedAtIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1-notes.json")
	if err := writePartitionFile(path, "notes", "s1", nil); err != nil {
		t.Fatal(err)
	}
	_, first, _, err := readPartitionFile(path, "notes")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := writePartitionFile(path, "notes", "s1", nil); err != nil {
		t.Fatal(err)
	}
	_, second, _, err := readPartitionFile(path, "notes")
	if err != nil {
		t.Fatal(err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("createdAt changed across rewrites: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("updatedAt moved backwards: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestPartitionMissingFile(t *testing.T) {
	docs, _, warn, err := readPartitionFile(filepath.Join(t.TempDir(), "nope.json"), "notes")
	if err != nil {
		t.Fatalf("err = %v, want nil (absence is not an error)", err)
	}
	if warn != nil {
		t.Errorf("warn = %v, want nil", warn)
	}
	if docs != nil {
		t.Errorf("docs = %v, want nil", docs)
	}
}

func TestPartitionCorruption(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid JSON", `{"notes": [`},
		{"top-level array", `[1, 2, 3]`},
		{"missing docs key", `{"sessionId": "s1"}`},
		{"docs not an array", `{"sessionId": "s1", "notes": {"a": 1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s1-notes.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			docs, _, warn, err := readPartitionFile(path, "notes")
			if err != nil {
				t.Fatalf("err = %v, want nil (corruption degrades, not fails)", err)
			}
			if warn == nil {
				t.Fatal("warn = nil, want a file-level warning")
			}
			if warn.File != "s1-notes.json" {
				t.Errorf("warn.File = %q, want %q", warn.File, "s1-notes.json")
			}
			if len(docs) != 0 {
				t.Errorf("len(docs) = %d, want 0", len(docs))
			}
		})
	}
}

func TestPartitionCorruptPredecessorTreatedAsNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1-notes.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := writePartitionFile(path, "notes", "s1", nil); err != nil {
		t.Fatalf("write over corrupt predecessor: %v", err)
	}
	_, meta, warn, err := readPartitionFile(path, "notes")
	if err != nil || warn != nil {
		t.Fatalf("read back: err=%v warn=%v", err, warn)
	}
	if meta.CreatedAt.IsZero() {
		t.Error("createdAt not reset for a corrupt predecessor")
	}
}
