// The critiques collection: objections raised against other records.

package storage

import (
	"errors"
	"fmt"

	"github.com/inquiry-labs/researchdb/internal/docstore"
)

// CritiqueStatus tracks whether an objection has been dealt with.
type CritiqueStatus string

// Critique statuses.
const (
	CritiqueOpen      CritiqueStatus = "open"
	CritiqueAddressed CritiqueStatus = "addressed"
	CritiqueDismissed CritiqueStatus = "dismissed"
)

func (s CritiqueStatus) valid() bool {
	switch s {
	case CritiqueOpen, CritiqueAddressed, CritiqueDismissed:
		return true
	}
	return false
}

// CritiqueSeverity grades an objection's weight.
type CritiqueSeverity string

// Critique severities.
const (
	CritiqueMinor    CritiqueSeverity = "minor"
	CritiqueMajor    CritiqueSeverity = "major"
	CritiqueBlocking CritiqueSeverity = "blocking"
)

func (s CritiqueSeverity) valid() bool {
	switch s {
	case CritiqueMinor, CritiqueMajor, CritiqueBlocking:
		return true
	}
	return false
}

// Critique is an objection targeting another record in the same session.
type Critique struct {
	Meta
	TargetID   string           `json:"targetId" jsonschema:"description=Id of the record being critiqued"`
	TargetKind string           `json:"targetKind" jsonschema:"description=Collection of the target record"`
	Content    string           `json:"content" jsonschema:"description=The objection itself"`
	Severity   CritiqueSeverity `json:"severity" jsonschema:"enum=minor,enum=major,enum=blocking"`
	Status     CritiqueStatus   `json:"status" jsonschema:"enum=open,enum=addressed,enum=dismissed"`
}

// Validate checks structure only. Whether the target still exists, or
// whether an already-dismissed critique may be reopened, is not the
// store's concern.
func (c *Critique) Validate() error {
	if err := c.validateMeta(); err != nil {
		return err
	}
	if c.TargetID == "" {
		return errCritiqueTarget
	}
	if c.Content == "" {
		return errCritiqueContent
	}
	if !c.Severity.valid() {
		return fmt.Errorf("invalid critique severity %q", c.Severity)
	}
	if !c.Status.valid() {
		return fmt.Errorf("invalid critique status %q", c.Status)
	}
	return nil
}

func projectCritique(c *Critique) docstore.IndexEntry {
	return docstore.IndexEntry{
		ID:         c.ID,
		SessionID:  c.SessionID,
		Status:     string(c.Status),
		Kind:       c.TargetKind,
		Severity:   string(c.Severity),
		Related:    []string{c.TargetID},
		Unresolved: c.Status == CritiqueOpen,
	}
}

// CritiqueService manages the critiques collection.
type CritiqueService struct {
	*docstore.Store[*Critique]
}

// NewCritiqueService creates the critiques store under baseDir.
func NewCritiqueService(baseDir string, locks *docstore.Locker) *CritiqueService {
	return &CritiqueService{docstore.NewStore(baseDir, docstore.Config[*Critique]{
		Name:      "critiques",
		IDPrefix:  "C",
		Validator: validator[Critique, *Critique]{},
		Project:   projectCritique,
	}, locks)}
}

var (
	errCritiqueTarget  = errors.New("critique targetId is required")
	errCritiqueContent = errors.New("critique content is required")
)
