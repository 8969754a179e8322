// The tests collection: planned and executed checks against hypotheses.

package storage

import (
	"errors"
	"fmt"

	"github.com/inquiry-labs/researchdb/internal/docstore"
)

// TestStatus tracks a test's execution state.
type TestStatus string

// Test statuses.
const (
	TestPlanned   TestStatus = "planned"
	TestRunning   TestStatus = "running"
	TestCompleted TestStatus = "completed"
)

func (s TestStatus) valid() bool {
	switch s {
	case TestPlanned, TestRunning, TestCompleted:
		return true
	}
	return false
}

// TestOutcome records what a completed test showed.
type TestOutcome string

// Test outcomes.
const (
	OutcomeSupports     TestOutcome = "supports"
	OutcomeRefutes      TestOutcome = "refutes"
	OutcomeInconclusive TestOutcome = "inconclusive"
)

func (o TestOutcome) valid() bool {
	switch o {
	case OutcomeSupports, OutcomeRefutes, OutcomeInconclusive:
		return true
	}
	return false
}

// TestRecord is one check designed to confirm or break a hypothesis.
type TestRecord struct {
	Meta
	HypothesisID string      `json:"hypothesisId" jsonschema:"description=The hypothesis under test"`
	Description  string      `json:"description" jsonschema:"description=What the test does"`
	Status       TestStatus  `json:"status" jsonschema:"enum=planned,enum=running,enum=completed"`
	Outcome      TestOutcome `json:"outcome,omitempty" jsonschema:"enum=supports,enum=refutes,enum=inconclusive"`
	Result       string      `json:"result,omitempty" jsonschema:"description=Free-form observations from the run"`
}

// Validate checks structure only. An outcome is only meaningful on a
// completed test, and is required there.
func (t *TestRecord) Validate() error {
	if err := t.validateMeta(); err != nil {
		return err
	}
	if t.HypothesisID == "" {
		return errTestHypothesis
	}
	if t.Description == "" {
		return errTestDescription
	}
	if !t.Status.valid() {
		return fmt.Errorf("invalid test status %q", t.Status)
	}
	if t.Status == TestCompleted {
		if !t.Outcome.valid() {
			return fmt.Errorf("invalid outcome %q for completed test", t.Outcome)
		}
	} else if t.Outcome != "" {
		return fmt.Errorf("outcome %q set on %s test", t.Outcome, t.Status)
	}
	return nil
}

func projectTestRecord(t *TestRecord) docstore.IndexEntry {
	return docstore.IndexEntry{
		ID:         t.ID,
		SessionID:  t.SessionID,
		Status:     string(t.Status),
		Kind:       string(t.Outcome),
		Related:    []string{t.HypothesisID},
		Unresolved: t.Status != TestCompleted,
	}
}

// TestService manages the tests collection.
type TestService struct {
	*docstore.Store[*TestRecord]
}

// NewTestService creates the tests store under baseDir.
func NewTestService(baseDir string, locks *docstore.Locker) *TestService {
	return &TestService{docstore.NewStore(baseDir, docstore.Config[*TestRecord]{
		Name:      "tests",
		IDPrefix:  "T",
		Validator: validator[TestRecord, *TestRecord]{},
		Project:   projectTestRecord,
	}, locks)}
}

var (
	errTestHypothesis  = errors.New("test hypothesisId is required")
	errTestDescription = errors.New("test description is required")
)
