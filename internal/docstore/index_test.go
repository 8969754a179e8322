package docstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRebuildIndexCorrespondence(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSession("S1", []*note{
		{ID: "N-S1-001", SessionID: "S1", Status: "open"},
		{ID: "N-S1-002", SessionID: "S1", Status: "done"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSession("S2", []*note{
		{ID: "N-S2-001", SessionID: "S2", Status: "open"},
	}); err != nil {
		t.Fatal(err)
	}

	idx, err := s.RebuildIndex()
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(idx.Entries))
	}
	if len(idx.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", idx.Warnings)
	}
	if idx.Version != indexVersion {
		t.Errorf("version = %q, want %q", idx.Version, indexVersion)
	}
	byID := map[string]IndexEntry{}
	for _, e := range idx.Entries {
		byID[e.ID] = e
	}
	if e := byID["N-S1-001"]; e.SessionID != "S1" || !e.Unresolved {
		t.Errorf("entry N-S1-001 = %+v, want S1/unresolved", e)
	}
	if e := byID["N-S1-002"]; e.Unresolved {
		t.Errorf("entry N-S1-002 = %+v, want resolved", e)
	}
}

func TestRebuildIndexEmptyCollection(t *testing.T) {
	s := newTestStore(t)
	idx, err := s.RebuildIndex()
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Entries) != 0 || len(idx.Warnings) != 0 {
		t.Errorf("idx = %+v, want empty", idx)
	}
}

func TestRebuildIndexToleratesBadFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSession("good", []*note{
		{ID: "N-good-001", SessionID: "good", Status: "open"},
	}); err != nil {
		t.Fatal(err)
	}

	// A structurally corrupt partition.
	if err := os.WriteFile(SessionFilePath(s.baseDir, "notes", "broken"), []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A partition with two invalid documents among valid ones.
	raws := []json.RawMessage{
		json.RawMessage(`{"id":"N-mixed-001","sessionId":"mixed","status":"open"}`),
		json.RawMessage(`{"id":"","sessionId":"mixed","status":"open"}`),
		json.RawMessage(`{"id":"N-mixed-003","sessionId":"mixed"}`),
	}
	if err := writePartitionFile(SessionFilePath(s.baseDir, "notes", "mixed"), "notes", "mixed", raws); err != nil {
		t.Fatal(err)
	}
	// A file without the partition suffix is ignored entirely.
	if err := os.WriteFile(filepath.Join(CollectionDir(s.baseDir, "notes"), "README.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := s.RebuildIndex()
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Entries) != 2 {
		t.Errorf("len(entries) = %d, want 2 (good + mixed valid doc)", len(idx.Entries))
	}
	if len(idx.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", idx.Warnings)
	}
	var sawCorrupt, sawSkipped bool
	for _, w := range idx.Warnings {
		if w.File == "broken-notes.json" {
			sawCorrupt = true
		}
		if w.File == "mixed-notes.json" && strings.Contains(w.Message, "skipped 2 invalid documents") {
			sawSkipped = true
		}
	}
	if !sawCorrupt {
		t.Error("missing warning for the corrupt file")
	}
	if !sawSkipped {
		t.Error("missing skipped-documents warning")
	}
}

func TestLoadIndexFallsBackToRebuild(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSession("S1", []*note{
		{ID: "N-S1-001", SessionID: "S1", Status: "open"},
	}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		corrupt func() error
	}{
		{"missing", func() error { return os.Remove(IndexPath(s.baseDir, "notes")) }},
		{"invalid JSON", func() error {
			return os.WriteFile(IndexPath(s.baseDir, "notes"), []byte("}{"), 0o644)
		}},
		{"entries not an array", func() error {
			return os.WriteFile(IndexPath(s.baseDir, "notes"), []byte(`{"version":"1.0.0","entries":{}}`), 0o644)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.corrupt(); err != nil {
				t.Fatal(err)
			}
			idx, err := s.LoadIndex()
			if err != nil {
				t.Fatal(err)
			}
			if len(idx.Entries) != 1 {
				t.Errorf("len(entries) = %d, want 1 after fallback rebuild", len(idx.Entries))
			}
		})
	}
}

func TestIncrementalUpdatePreservesOtherSessions(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSession("S1", []*note{
		{ID: "N-S1-001", SessionID: "S1", Status: "open"},
		{ID: "N-S1-002", SessionID: "S1", Status: "open"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSession("S2", []*note{
		{ID: "N-S2-001", SessionID: "S2", Status: "open"},
	}); err != nil {
		t.Fatal(err)
	}

	// Shrink S1; S2's entries must survive untouched.
	if err := s.SaveSession("S1", []*note{
		{ID: "N-S1-001", SessionID: "S1", Status: "done"},
	}); err != nil {
		t.Fatal(err)
	}

	idx, ok := s.readIndexFile()
	if !ok {
		t.Fatal("index unreadable after incremental update")
	}
	if len(idx.Entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(idx.Entries))
	}
	ids := map[string]bool{}
	for _, e := range idx.Entries {
		ids[e.ID] = true
	}
	if !ids["N-S1-001"] || !ids["N-S2-001"] {
		t.Errorf("entries = %v, want N-S1-001 and N-S2-001", idx.Entries)
	}
}

func TestIncrementalUpdateSelfHeals(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSession("S1", []*note{
		{ID: "N-S1-001", SessionID: "S1", Status: "open"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(IndexPath(s.baseDir, "notes"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The save cannot patch a broken index; it rebuilds instead.
	if err := s.SaveSession("S2", []*note{
		{ID: "N-S2-001", SessionID: "S2", Status: "open"},
	}); err != nil {
		t.Fatal(err)
	}
	idx, ok := s.readIndexFile()
	if !ok {
		t.Fatal("index still unreadable after self-healing save")
	}
	if len(idx.Entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(idx.Entries))
	}
}
