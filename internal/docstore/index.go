// Builds, loads and incrementally updates the secondary index.

package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// indexVersion is the current on-disk index format version.
const indexVersion = "1.0.0"

// Warning is a non-fatal diagnostic describing a tolerated data-quality
// issue found during rebuild. Warnings are returned data, never raised;
// callers decide whether to surface them.
type Warning struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// IndexEntry is a denormalized projection of one document's queryable
// attributes. It holds nothing that is not derivable from the document
// itself; (ID, SessionID) corresponds to exactly one document.
type IndexEntry struct {
	ID         string   `json:"id"`
	SessionID  string   `json:"sessionId"`
	Status     string   `json:"status,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Severity   string   `json:"severity,omitempty"`
	Related    []string `json:"related,omitempty"`
	Unresolved bool     `json:"unresolved,omitempty"`
}

// Index aggregates lightweight per-document metadata across all sessions
// of one collection. It is always fully reconstructable from the union of
// all partitions.
type Index struct {
	Version   string       `json:"version"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Entries   []IndexEntry `json:"entries"`
	Warnings  []Warning    `json:"warnings,omitempty"`
}

// RebuildIndex reconstructs the index from every partition file, writes it
// to disk and returns it.
//
// An unparseable file or a non-array documents payload contributes one
// file-level warning and is skipped; documents failing validation are
// counted into a single per-file warning. One bad file never blocks the
// rebuild from processing the rest. This is the authoritative
// recovery/repair path.
func (s *Store[T]) RebuildIndex() (*Index, error) {
	idx := &Index{Version: indexVersion, UpdatedAt: time.Now().UTC(), Entries: []IndexEntry{}}
	dir := CollectionDir(s.baseDir, s.cfg.Name)
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read collection directory %s: %w", dir, err)
	}
	suffix := "-" + s.cfg.Name + ".json"
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		raws, _, warn, err := readPartitionFile(filepath.Join(dir, entry.Name()), s.cfg.Name)
		if err != nil {
			return nil, err
		}
		if warn != nil {
			idx.Warnings = append(idx.Warnings, *warn)
			continue
		}
		skipped := 0
		for _, raw := range raws {
			doc, err := s.cfg.Validator.Parse(raw)
			if err != nil {
				skipped++
				continue
			}
			idx.Entries = append(idx.Entries, s.cfg.Project(doc))
		}
		if skipped > 0 {
			idx.Warnings = append(idx.Warnings, Warning{
				File:    entry.Name(),
				Message: fmt.Sprintf("skipped %d invalid documents", skipped),
			})
		}
	}
	if err := s.writeIndex(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// LoadIndex reads the on-disk index, rebuilding it when missing,
// unreadable or structurally malformed.
func (s *Store[T]) LoadIndex() (*Index, error) {
	if idx, ok := s.readIndexFile(); ok {
		return idx, nil
	}
	return s.RebuildIndex()
}

// readIndexFile reads and decodes the index file. ok is false for any
// condition that warrants a rebuild, including an entries value that is
// not an array.
func (s *Store[T]) readIndexFile() (*Index, bool) {
	data, err := os.ReadFile(IndexPath(s.baseDir, s.cfg.Name))
	if err != nil {
		return nil, false
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, false
	}
	if idx.Entries == nil {
		return nil, false
	}
	return &idx, true
}

// updateIndexSession replaces one session's entries after a partition
// save, leaving every other session untouched: O(session) instead of
// O(corpus). An unreadable on-disk index triggers a full rebuild instead,
// which is self-healing because the partition was already written.
func (s *Store[T]) updateIndexSession(sessionID string, docs []T) error {
	idx, ok := s.readIndexFile()
	if !ok {
		_, err := s.RebuildIndex()
		return err
	}
	kept := idx.Entries[:0]
	for _, e := range idx.Entries {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	for _, doc := range docs {
		kept = append(kept, s.cfg.Project(doc))
	}
	idx.Entries = kept
	idx.Version = indexVersion
	idx.UpdatedAt = time.Now().UTC()
	return s.writeIndex(idx)
}

func (s *Store[T]) writeIndex(idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	data = append(data, '\n')
	path := IndexPath(s.baseDir, s.cfg.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create research directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: the index is a plain data file
		return fmt.Errorf("failed to write index %s: %w", path, err)
	}
	return nil
}
