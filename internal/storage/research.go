// Cross-collection aggregate over one base directory.

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/inquiry-labs/researchdb/internal/docstore"
)

// Research bundles the five collection stores over one base directory.
// All stores share one Locker so writes to the same collection serialize
// regardless of which service issued them.
type Research struct {
	Hypotheses  *HypothesisService
	Assumptions *AssumptionService
	Anomalies   *AnomalyService
	Critiques   *CritiqueService
	Tests       *TestService

	baseDir     string
	collections map[string]Collection
}

// New creates the aggregate rooted at baseDir. Directories are created
// lazily on first write.
func New(baseDir string) *Research {
	locks := docstore.NewLocker()
	r := &Research{
		Hypotheses:  NewHypothesisService(baseDir, locks),
		Assumptions: NewAssumptionService(baseDir, locks),
		Anomalies:   NewAnomalyService(baseDir, locks),
		Critiques:   NewCritiqueService(baseDir, locks),
		Tests:       NewTestService(baseDir, locks),
		baseDir:     baseDir,
	}
	r.collections = map[string]Collection{
		"hypotheses":  collection[*Hypothesis]{r.Hypotheses.Store},
		"assumptions": collection[*Assumption]{r.Assumptions.Store},
		"anomalies":   collection[*Anomaly]{r.Anomalies.Store},
		"critiques":   collection[*Critique]{r.Critiques.Store},
		"tests":       collection[*TestRecord]{r.Tests.Store},
	}
	return r
}

// BaseDir returns the directory the aggregate is rooted at.
func (r *Research) BaseDir() string {
	return r.baseDir
}

// Collection looks a collection up by its plural name. Returns nil when
// the name is unknown.
func (r *Research) Collection(name string) Collection {
	return r.collections[name]
}

// CollectionNames returns the known collection names in a fixed order.
func (r *Research) CollectionNames() []string {
	return []string{"hypotheses", "assumptions", "anomalies", "critiques", "tests"}
}

// Rebuilders exposes the stores to the partition watcher.
func (r *Research) Rebuilders() []docstore.Rebuilder {
	out := make([]docstore.Rebuilder, 0, len(r.collections))
	for _, name := range r.CollectionNames() {
		out = append(out, r.collections[name])
	}
	return out
}

// RebuildAll rebuilds every collection's index, collecting warnings per
// collection. It keeps going past individual failures and returns the
// first error encountered, if any.
func (r *Research) RebuildAll() (map[string]*docstore.Index, error) {
	out := make(map[string]*docstore.Index, len(r.collections))
	var firstErr error
	for _, name := range r.CollectionNames() {
		idx, err := r.collections[name].RebuildIndex()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("rebuild %s: %w", name, err)
			}
			continue
		}
		out[name] = idx
	}
	return out, firstErr
}

// Report aggregates per-collection statistics, loading the five
// collections concurrently.
func (r *Research) Report(ctx context.Context) (map[string]*docstore.Stats, error) {
	out := make(map[string]*docstore.Stats, len(r.collections))
	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for _, name := range r.CollectionNames() {
		g.Go(func() error {
			st, err := r.collections[name].Stats()
			if err != nil {
				return fmt.Errorf("stats for %s: %w", name, err)
			}
			mu.Lock()
			out[name] = st
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// NewSessionID mints a fresh session id, nested under parent when one is
// given. Hierarchy levels are joined with dots, which the path sanitizer
// preserves.
func NewSessionID(parent string) string {
	id := uuid.NewString()
	if parent == "" {
		return id
	}
	return parent + "." + id
}

// Collection is the type-erased surface the HTTP layer works against.
// Document payloads cross it as raw JSON and come back as values ready
// for re-encoding.
type Collection interface {
	Name() string
	SaveRaw(raw json.RawMessage) (any, error)
	SaveSessionRaw(sessionID string, raws []json.RawMessage) (any, error)
	GetByIDRaw(id string) (any, bool, error)
	LoadSessionRaw(sessionID string) (any, error)
	FindRaw(status, kind, related string) (any, error)
	Delete(id string) (bool, error)
	Sessions() ([]string, error)
	Stats() (*docstore.Stats, error)
	UnaddressedFor(target string) (int, error)
	RebuildIndex() (*docstore.Index, error)
}

type collection[T docstore.Document] struct {
	*docstore.Store[T]
}

func (c collection[T]) SaveRaw(raw json.RawMessage) (any, error) {
	doc, err := c.Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := c.Save(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SaveSessionRaw replaces a session's whole partition. Unlike the
// tolerant read path, any invalid element rejects the write outright.
func (c collection[T]) SaveSessionRaw(sessionID string, raws []json.RawMessage) (any, error) {
	docs := make([]T, 0, len(raws))
	for _, raw := range raws {
		doc, err := c.Parse(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := c.SaveSession(sessionID, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c collection[T]) GetByIDRaw(id string) (any, bool, error) {
	doc, found, err := c.GetByID(id)
	if err != nil || !found {
		return nil, found, err
	}
	return doc, true, nil
}

func (c collection[T]) LoadSessionRaw(sessionID string) (any, error) {
	return c.LoadSession(sessionID)
}

// FindRaw applies the given filters in sequence. Empty filters are
// ignored; with no filter at all the result covers every session.
func (c collection[T]) FindRaw(status, kind, related string) (any, error) {
	switch {
	case status != "":
		return c.FindByStatus(status)
	case kind != "":
		return c.FindByKind(kind)
	case related != "":
		return c.FindByRelated(related)
	}
	sessions, err := c.Store.Sessions()
	if err != nil {
		return nil, err
	}
	out := []T{}
	for _, sessionID := range sessions {
		docs, err := c.LoadSession(sessionID)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

// ParseCollectionPath splits "hypotheses/H-S1-001" style references used
// by cross-collection tooling.
func ParseCollectionPath(ref string) (coll, id string, ok bool) {
	coll, id, ok = strings.Cut(ref, "/")
	return coll, id, ok && coll != "" && id != ""
}
