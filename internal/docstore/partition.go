// Reads and writes one collection-and-session partition file.

package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// partitionMeta is the envelope of a partition file, minus its documents.
type partitionMeta struct {
	SessionID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func parsePartitionMeta(top map[string]json.RawMessage) partitionMeta {
	var meta partitionMeta
	if raw, ok := top["sessionId"]; ok {
		_ = json.Unmarshal(raw, &meta.SessionID)
	}
	if raw, ok := top["createdAt"]; ok {
		_ = json.Unmarshal(raw, &meta.CreatedAt)
	}
	if raw, ok := top["updatedAt"]; ok {
		_ = json.Unmarshal(raw, &meta.UpdatedAt)
	}
	return meta
}

// readPartitionFile reads a partition and returns its raw document
// elements without validating them.
//
// A missing file yields nil documents and no warning. Structural
// corruption (unparseable JSON, top-level not an object, documents not an
// array) yields a file-level warning and nil documents. Only I/O failures
// unrelated to absence return an error.
func readPartitionFile(path, docsKey string) ([]json.RawMessage, partitionMeta, *Warning, error) {
	var meta partitionMeta
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, meta, nil, nil
		}
		return nil, meta, nil, fmt.Errorf("failed to read partition %s: %w", path, err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, meta, &Warning{File: filepath.Base(path), Message: "invalid JSON: " + err.Error()}, nil
	}
	meta = parsePartitionMeta(top)

	raw, ok := top[docsKey]
	if !ok {
		return nil, meta, &Warning{File: filepath.Base(path), Message: "missing " + docsKey + " array"}, nil
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, meta, &Warning{File: filepath.Base(path), Message: docsKey + " is not an array"}, nil
	}
	return docs, meta, nil, nil
}

// writePartitionFile rewrites a partition whole. The existing file is read
// only to preserve createdAt; any failure during that read means "new
// file", never a save failure. updatedAt never moves backwards, even under
// clock drift. The caller must hold the collection lock.
func writePartitionFile(path, docsKey, sessionID string, docs []json.RawMessage) error {
	now := time.Now().UTC()
	created := now
	updated := now
	if data, err := os.ReadFile(path); err == nil {
		var top map[string]json.RawMessage
		if err := json.Unmarshal(data, &top); err == nil {
			prev := parsePartitionMeta(top)
			if !prev.CreatedAt.IsZero() {
				created = prev.CreatedAt
			}
			if prev.UpdatedAt.After(updated) {
				updated = prev.UpdatedAt
			}
		}
	}

	if docs == nil {
		docs = []json.RawMessage{}
	}
	payload := map[string]any{
		"sessionId": sessionID,
		"createdAt": created,
		"updatedAt": updated,
		docsKey:     docs,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal partition: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create collection directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: partitions are plain data files
		return fmt.Errorf("failed to write partition %s: %w", path, err)
	}
	return nil
}
