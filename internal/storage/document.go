// Package storage instantiates the generic document store for the five
// research collections (hypotheses, assumptions, anomalies, critiques,
// tests) and provides the cross-collection aggregate.
//
// Each collection pairs a typed document with a structural validator and
// an index projector. Validators check structure only; domain-level
// transition rules (such as refusing to address an already-dismissed
// critique) belong to the debate orchestrator above this layer.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/inquiry-labs/researchdb/internal/docstore"
)

// Meta is the envelope shared by every stored record.
type Meta struct {
	ID        string    `json:"id" jsonschema:"description=Unique within the collection"`
	SessionID string    `json:"sessionId" jsonschema:"description=Owning debate session"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// DocID implements docstore.Document.
func (m *Meta) DocID() string { return m.ID }

// DocSessionID implements docstore.Document.
func (m *Meta) DocSessionID() string { return m.SessionID }

func (m *Meta) validateMeta() error {
	if m.ID == "" {
		return errIDRequired
	}
	if m.SessionID == "" {
		return errSessionIDRequired
	}
	return nil
}

// validator adapts a document type's Validate hook to the store's
// per-element Validator contract.
type validator[T any, PT interface {
	*T
	docstore.Document
	Validate() error
}] struct{}

func (validator[T, PT]) Parse(raw json.RawMessage) (PT, error) {
	doc := PT(new(T))
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

var (
	errIDRequired        = errors.New("document id is required")
	errSessionIDRequired = errors.New("document sessionId is required")
)
