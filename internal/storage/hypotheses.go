// The hypotheses collection: candidate explanations under debate.

package storage

import (
	"errors"
	"fmt"

	"github.com/inquiry-labs/researchdb/internal/docstore"
)

// HypothesisStatus tracks a hypothesis through the debate lifecycle.
type HypothesisStatus string

// Hypothesis statuses.
const (
	HypothesisProposed  HypothesisStatus = "proposed"
	HypothesisDebating  HypothesisStatus = "debating"
	HypothesisSupported HypothesisStatus = "supported"
	HypothesisRefuted   HypothesisStatus = "refuted"
	HypothesisMerged    HypothesisStatus = "merged"
)

func (s HypothesisStatus) valid() bool {
	switch s {
	case HypothesisProposed, HypothesisDebating, HypothesisSupported, HypothesisRefuted, HypothesisMerged:
		return true
	}
	return false
}

// Hypothesis is one candidate explanation for the phenomenon a session
// debates.
type Hypothesis struct {
	Meta
	Statement     string           `json:"statement" jsonschema:"description=The claim under debate"`
	Status        HypothesisStatus `json:"status" jsonschema:"enum=proposed,enum=debating,enum=supported,enum=refuted,enum=merged"`
	Confidence    float64          `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=1"`
	MergedInto    string           `json:"mergedInto,omitempty" jsonschema:"description=Absorbing hypothesis when status is merged"`
	AssumptionIDs []string         `json:"assumptionIds,omitempty"`
	AnomalyIDs    []string         `json:"anomalyIds,omitempty"`
}

// Validate checks structure, not debate-state transitions.
func (h *Hypothesis) Validate() error {
	if err := h.validateMeta(); err != nil {
		return err
	}
	if h.Statement == "" {
		return errStatementRequired
	}
	if !h.Status.valid() {
		return fmt.Errorf("invalid hypothesis status %q", h.Status)
	}
	if h.Confidence < 0 || h.Confidence > 1 {
		return errConfidenceRange
	}
	return nil
}

func projectHypothesis(h *Hypothesis) docstore.IndexEntry {
	related := make([]string, 0, len(h.AssumptionIDs)+len(h.AnomalyIDs))
	related = append(related, h.AssumptionIDs...)
	related = append(related, h.AnomalyIDs...)
	return docstore.IndexEntry{
		ID:         h.ID,
		SessionID:  h.SessionID,
		Status:     string(h.Status),
		Related:    related,
		Unresolved: h.Status == HypothesisProposed || h.Status == HypothesisDebating,
	}
}

// HypothesisService manages the hypotheses collection.
type HypothesisService struct {
	*docstore.Store[*Hypothesis]
}

// NewHypothesisService creates the hypotheses store under baseDir.
func NewHypothesisService(baseDir string, locks *docstore.Locker) *HypothesisService {
	return &HypothesisService{docstore.NewStore(baseDir, docstore.Config[*Hypothesis]{
		Name:      "hypotheses",
		IDPrefix:  "H",
		Validator: validator[Hypothesis, *Hypothesis]{},
		Project:   projectHypothesis,
	}, locks)}
}

var (
	errStatementRequired = errors.New("hypothesis statement is required")
	errConfidenceRange   = errors.New("hypothesis confidence must be within [0, 1]")
)
