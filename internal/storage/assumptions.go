// The assumptions collection: premises hypotheses rest on.

package storage

import (
	"errors"
	"fmt"

	"github.com/inquiry-labs/researchdb/internal/docstore"
)

// AssumptionStatus tracks whether a premise has been checked.
type AssumptionStatus string

// Assumption statuses.
const (
	AssumptionUnverified AssumptionStatus = "unverified"
	AssumptionVerified   AssumptionStatus = "verified"
	AssumptionViolated   AssumptionStatus = "violated"
)

func (s AssumptionStatus) valid() bool {
	switch s {
	case AssumptionUnverified, AssumptionVerified, AssumptionViolated:
		return true
	}
	return false
}

// Criticality grades how much rides on an assumption.
type Criticality string

// Criticality levels.
const (
	CriticalityMinor    Criticality = "minor"
	CriticalityMajor    Criticality = "major"
	CriticalityCritical Criticality = "critical"
)

func (c Criticality) valid() bool {
	switch c {
	case CriticalityMinor, CriticalityMajor, CriticalityCritical:
		return true
	}
	return false
}

// Assumption is a premise one or more hypotheses depend on.
type Assumption struct {
	Meta
	Statement     string           `json:"statement" jsonschema:"description=The premise being assumed"`
	Status        AssumptionStatus `json:"status" jsonschema:"enum=unverified,enum=verified,enum=violated"`
	Criticality   Criticality      `json:"criticality" jsonschema:"enum=minor,enum=major,enum=critical"`
	HypothesisIDs []string         `json:"hypothesisIds,omitempty"`
}

// Validate checks structure only.
func (a *Assumption) Validate() error {
	if err := a.validateMeta(); err != nil {
		return err
	}
	if a.Statement == "" {
		return errAssumptionStatement
	}
	if !a.Status.valid() {
		return fmt.Errorf("invalid assumption status %q", a.Status)
	}
	if !a.Criticality.valid() {
		return fmt.Errorf("invalid assumption criticality %q", a.Criticality)
	}
	return nil
}

func projectAssumption(a *Assumption) docstore.IndexEntry {
	return docstore.IndexEntry{
		ID:         a.ID,
		SessionID:  a.SessionID,
		Status:     string(a.Status),
		Severity:   string(a.Criticality),
		Related:    append([]string(nil), a.HypothesisIDs...),
		Unresolved: a.Status == AssumptionUnverified,
	}
}

// AssumptionService manages the assumptions collection.
type AssumptionService struct {
	*docstore.Store[*Assumption]
}

// NewAssumptionService creates the assumptions store under baseDir.
func NewAssumptionService(baseDir string, locks *docstore.Locker) *AssumptionService {
	return &AssumptionService{docstore.NewStore(baseDir, docstore.Config[*Assumption]{
		Name:      "assumptions",
		IDPrefix:  "A",
		Validator: validator[Assumption, *Assumption]{},
		Project:   projectAssumption,
	}, locks)}
}

var errAssumptionStatement = errors.New("assumption statement is required")
