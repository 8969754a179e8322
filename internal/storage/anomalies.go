// The anomalies collection: observations no accepted hypothesis explains.

package storage

import (
	"errors"
	"fmt"

	"github.com/inquiry-labs/researchdb/internal/docstore"
)

// AnomalyStatus tracks whether an observation has been accounted for.
type AnomalyStatus string

// Anomaly statuses.
const (
	AnomalyOpen      AnomalyStatus = "open"
	AnomalyExplained AnomalyStatus = "explained"
	AnomalyDismissed AnomalyStatus = "dismissed"
)

func (s AnomalyStatus) valid() bool {
	switch s {
	case AnomalyOpen, AnomalyExplained, AnomalyDismissed:
		return true
	}
	return false
}

// AnomalySeverity grades how badly an observation strains the picture.
type AnomalySeverity string

// Anomaly severities.
const (
	AnomalyMinor    AnomalySeverity = "minor"
	AnomalyMajor    AnomalySeverity = "major"
	AnomalyCritical AnomalySeverity = "critical"
)

func (s AnomalySeverity) valid() bool {
	switch s {
	case AnomalyMinor, AnomalyMajor, AnomalyCritical:
		return true
	}
	return false
}

// Anomaly is an observation that resists the current explanations.
type Anomaly struct {
	Meta
	Description   string          `json:"description" jsonschema:"description=What was observed"`
	Status        AnomalyStatus   `json:"status" jsonschema:"enum=open,enum=explained,enum=dismissed"`
	Severity      AnomalySeverity `json:"severity" jsonschema:"enum=minor,enum=major,enum=critical"`
	HypothesisIDs []string        `json:"hypothesisIds,omitempty" jsonschema:"description=Candidate explanations"`
}

// Validate checks structure only.
func (a *Anomaly) Validate() error {
	if err := a.validateMeta(); err != nil {
		return err
	}
	if a.Description == "" {
		return errAnomalyDescription
	}
	if !a.Status.valid() {
		return fmt.Errorf("invalid anomaly status %q", a.Status)
	}
	if !a.Severity.valid() {
		return fmt.Errorf("invalid anomaly severity %q", a.Severity)
	}
	return nil
}

func projectAnomaly(a *Anomaly) docstore.IndexEntry {
	return docstore.IndexEntry{
		ID:         a.ID,
		SessionID:  a.SessionID,
		Status:     string(a.Status),
		Severity:   string(a.Severity),
		Related:    append([]string(nil), a.HypothesisIDs...),
		Unresolved: a.Status == AnomalyOpen,
	}
}

// AnomalyService manages the anomalies collection.
type AnomalyService struct {
	*docstore.Store[*Anomaly]
}

// NewAnomalyService creates the anomalies store under baseDir.
func NewAnomalyService(baseDir string, locks *docstore.Locker) *AnomalyService {
	return &AnomalyService{docstore.NewStore(baseDir, docstore.Config[*Anomaly]{
		Name:      "anomalies",
		IDPrefix:  "AN",
		Validator: validator[Anomaly, *Anomaly]{},
		Project:   projectAnomaly,
	}, locks)}
}

var errAnomalyDescription = errors.New("anomaly description is required")
