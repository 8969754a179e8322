// Generic document accessor composing the partition store, the write
// serializer and the secondary index.

package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Document is the envelope contract every stored record satisfies.
type Document interface {
	DocID() string
	DocSessionID() string
}

// Validator parses and structurally validates one raw document. It is
// invoked once per array element so a single bad element cannot invalidate
// its siblings. Domain-level transition rules belong to a higher layer;
// the store validates structure only.
type Validator[T Document] interface {
	Parse(raw json.RawMessage) (T, error)
}

// Config describes one collection.
type Config[T Document] struct {
	// Name is the plural collection name. It names the collection
	// directory, the partition file suffix and the documents key inside
	// partition files ("hypotheses").
	Name string

	// IDPrefix is the document id prefix: "H" matches both the
	// session-embedded shape "H-S1-001" and the simple shape "H12".
	IDPrefix string

	// Validator checks one raw document.
	Validator Validator[T]

	// Project derives a document's index entry.
	Project func(T) IndexEntry
}

// Store is the document accessor for one collection under one base
// directory. All mutations are serialized through the shared [Locker].
type Store[T Document] struct {
	baseDir    string
	cfg        Config[T]
	locks      *Locker
	lockKey    string
	embeddedID *regexp.Regexp
	simpleID   *regexp.Regexp
}

// NewStore creates the accessor for one collection. Stores sharing a base
// directory must share the same Locker.
func NewStore[T Document](baseDir string, cfg Config[T], locks *Locker) *Store[T] {
	p := regexp.QuoteMeta(cfg.IDPrefix)
	return &Store[T]{
		baseDir:    baseDir,
		cfg:        cfg,
		locks:      locks,
		lockKey:    CollectionDir(baseDir, cfg.Name),
		embeddedID: regexp.MustCompile(`^` + p + `-(.+)-\d+$`),
		simpleID:   regexp.MustCompile(`^` + p + `\d+$`),
	}
}

// Name returns the collection name.
func (s *Store[T]) Name() string {
	return s.cfg.Name
}

// Parse runs one raw document through the collection's validator.
func (s *Store[T]) Parse(raw json.RawMessage) (T, error) {
	return s.cfg.Validator.Parse(raw)
}

// LoadSession returns a session's documents.
//
// A missing partition yields an empty list. A corrupted partition logs a
// warning and yields an empty list; individual documents failing
// validation are skipped. This read is not serialized against concurrent
// writers and may observe a partition mid-transition.
func (s *Store[T]) LoadSession(sessionID string) ([]T, error) {
	return s.loadPartition(SessionFilePath(s.baseDir, s.cfg.Name, sessionID))
}

func (s *Store[T]) loadPartition(path string) ([]T, error) {
	raws, _, warn, err := readPartitionFile(path, s.cfg.Name)
	if err != nil {
		return nil, err
	}
	if warn != nil {
		slog.Warn("Ignoring corrupted partition", "collection", s.cfg.Name, "file", warn.File, "reason", warn.Message)
		return []T{}, nil
	}
	docs := make([]T, 0, len(raws))
	for _, raw := range raws {
		doc, err := s.cfg.Validator.Parse(raw)
		if err != nil {
			slog.Debug("Skipping invalid document", "collection", s.cfg.Name, "file", filepath.Base(path), "err", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SaveSession replaces a session's whole partition and refreshes its index
// entries.
func (s *Store[T]) SaveSession(sessionID string, docs []T) error {
	if sessionID == "" {
		return errMissingSessionID
	}
	return s.locks.WithLock(s.lockKey, func() error {
		return s.saveSessionLocked(sessionID, docs)
	})
}

func (s *Store[T]) saveSessionLocked(sessionID string, docs []T) error {
	raws := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		raws = append(raws, raw)
	}
	path := SessionFilePath(s.baseDir, s.cfg.Name, sessionID)
	if err := writePartitionFile(path, s.cfg.Name, sessionID, raws); err != nil {
		return err
	}
	return s.updateIndexSession(sessionID, docs)
}

// GetByID fetches one document by id.
//
// Session-embedded ids ("H-S1-001") resolve with a single partition read.
// Simple ids ("H12") carry no session hint and scan every partition in
// directory order; when the same simple id is reused across sessions, the
// first match wins. Unrecognized shapes report not found.
func (s *Store[T]) GetByID(id string) (T, bool, error) {
	var zero T
	if m := s.embeddedID.FindStringSubmatch(id); m != nil {
		docs, err := s.LoadSession(m[1])
		if err != nil {
			return zero, false, err
		}
		for _, doc := range docs {
			if doc.DocID() == id {
				return doc, true, nil
			}
		}
		return zero, false, nil
	}
	if s.simpleID.MatchString(id) {
		_, doc, found, err := s.scanForID(id)
		return doc, found, err
	}
	return zero, false, nil
}

// Save upserts one document into its owning partition: replace when the id
// exists, append otherwise. The index is updated in lockstep.
func (s *Store[T]) Save(doc T) error {
	id := doc.DocID()
	sessionID := doc.DocSessionID()
	if id == "" {
		return errMissingDocID
	}
	if sessionID == "" {
		return errMissingSessionID
	}
	return s.locks.WithLock(s.lockKey, func() error {
		docs, err := s.LoadSession(sessionID)
		if err != nil {
			return err
		}
		replaced := false
		for i := range docs {
			if docs[i].DocID() == id {
				docs[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			docs = append(docs, doc)
		}
		return s.saveSessionLocked(sessionID, docs)
	})
}

// Delete removes a document by id and reports whether a removal happened.
// A document that vanished between lookup and removal (a race with a
// concurrent delete) yields false, not an error. An emptied partition
// stays on disk.
func (s *Store[T]) Delete(id string) (bool, error) {
	removed := false
	err := s.locks.WithLock(s.lockKey, func() error {
		var sessionID string
		if m := s.embeddedID.FindStringSubmatch(id); m != nil {
			sessionID = m[1]
		} else if s.simpleID.MatchString(id) {
			owner, _, found, err := s.scanForID(id)
			if err != nil {
				return err
			}
			if !found {
				return nil
			}
			sessionID = owner
		} else {
			return nil
		}
		docs, err := s.LoadSession(sessionID)
		if err != nil {
			return err
		}
		kept := make([]T, 0, len(docs))
		for _, doc := range docs {
			if doc.DocID() != id {
				kept = append(kept, doc)
			}
		}
		if len(kept) == len(docs) {
			return nil
		}
		removed = true
		return s.saveSessionLocked(sessionID, kept)
	})
	return removed, err
}

// scanForID walks every partition file in directory order looking for an
// id without a session hint. Returns the owning session id as recorded in
// the partition.
func (s *Store[T]) scanForID(id string) (string, T, bool, error) {
	var zero T
	dir := CollectionDir(s.baseDir, s.cfg.Name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", zero, false, nil
		}
		return "", zero, false, fmt.Errorf("failed to read collection directory %s: %w", dir, err)
	}
	suffix := "-" + s.cfg.Name + ".json"
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		raws, meta, warn, err := readPartitionFile(filepath.Join(dir, entry.Name()), s.cfg.Name)
		if err != nil {
			return "", zero, false, err
		}
		if warn != nil {
			continue
		}
		for _, raw := range raws {
			doc, err := s.cfg.Validator.Parse(raw)
			if err != nil {
				continue
			}
			if doc.DocID() == id {
				sessionID := meta.SessionID
				if sessionID == "" {
					sessionID = doc.DocSessionID()
				}
				return sessionID, doc, true, nil
			}
		}
	}
	return "", zero, false, nil
}

var (
	errMissingDocID     = errors.New("document id is required")
	errMissingSessionID = errors.New("session id is required")
)
