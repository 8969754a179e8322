// Index-driven filtered queries and aggregate statistics.

package docstore

import (
	"slices"
	"sort"
)

// Stats summarizes one collection from the index alone. Counts may be
// marginally stale relative to a concurrent writer; that staleness is the
// price of cost proportional to the index rather than the corpus.
type Stats struct {
	Total      int            `json:"total"`
	Sessions   int            `json:"sessions"`
	Unresolved int            `json:"unresolved"`
	ByStatus   map[string]int `json:"byStatus"`
	ByKind     map[string]int `json:"byKind,omitempty"`
	BySeverity map[string]int `json:"bySeverity,omitempty"`
}

// findMatching uses the index as a coarse pre-filter to pick candidate
// sessions, then re-applies the predicate against fully validated
// documents. The index is never the final authority for document results
// because it may lag a concurrent writer.
func (s *Store[T]) findMatching(match func(IndexEntry) bool) ([]T, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}
	sessions := make(map[string]struct{})
	for _, e := range idx.Entries {
		if match(e) {
			sessions[e.SessionID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []T{}
	for _, sessionID := range ids {
		docs, err := s.LoadSession(sessionID)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if match(s.cfg.Project(doc)) {
				out = append(out, doc)
			}
		}
	}
	return out, nil
}

// FindByStatus returns all documents whose projected status matches.
func (s *Store[T]) FindByStatus(status string) ([]T, error) {
	return s.findMatching(func(e IndexEntry) bool { return e.Status == status })
}

// FindByKind returns all documents whose projected kind matches.
func (s *Store[T]) FindByKind(kind string) ([]T, error) {
	return s.findMatching(func(e IndexEntry) bool { return e.Kind == kind })
}

// FindByRelated returns all documents referencing the given document id.
func (s *Store[T]) FindByRelated(id string) ([]T, error) {
	return s.findMatching(func(e IndexEntry) bool { return slices.Contains(e.Related, id) })
}

// Sessions returns the distinct indexed session ids, sorted.
func (s *Store[T]) Sessions() ([]string, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, e := range idx.Entries {
		seen[e.SessionID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Stats computes aggregate counts from the index alone.
func (s *Store[T]) Stats() (*Stats, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}
	st := &Stats{ByStatus: make(map[string]int)}
	sessions := make(map[string]struct{})
	for _, e := range idx.Entries {
		st.Total++
		sessions[e.SessionID] = struct{}{}
		if e.Status != "" {
			st.ByStatus[e.Status]++
		}
		if e.Kind != "" {
			if st.ByKind == nil {
				st.ByKind = make(map[string]int)
			}
			st.ByKind[e.Kind]++
		}
		if e.Severity != "" {
			if st.BySeverity == nil {
				st.BySeverity = make(map[string]int)
			}
			st.BySeverity[e.Severity]++
		}
		if e.Unresolved {
			st.Unresolved++
		}
	}
	st.Sessions = len(sessions)
	return st, nil
}

// UnaddressedFor counts unresolved documents referencing target, from the
// index alone.
func (s *Store[T]) UnaddressedFor(target string) (int, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range idx.Entries {
		if e.Unresolved && slices.Contains(e.Related, target) {
			n++
		}
	}
	return n, nil
}
