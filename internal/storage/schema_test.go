package storage

import (
	"encoding/json"
	"testing"
)

func TestSchemasValidateRaw(t *testing.T) {
	s, err := NewSchemas()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		collection string
		doc        string
		wantOK     bool
	}{
		{
			"valid hypothesis",
			"hypotheses",
			`{"id":"H-S1-001","sessionId":"S1","statement":"x","status":"proposed"}`,
			true,
		},
		{
			"status outside enum",
			"hypotheses",
			`{"id":"H-S1-001","sessionId":"S1","statement":"x","status":"maybe"}`,
			false,
		},
		{
			"confidence above maximum",
			"hypotheses",
			`{"id":"H-S1-001","sessionId":"S1","statement":"x","status":"proposed","confidence":2}`,
			false,
		},
		{
			"wrong type for statement",
			"assumptions",
			`{"id":"A-S1-001","sessionId":"S1","statement":42,"status":"unverified","criticality":"minor"}`,
			false,
		},
		{
			"valid test record",
			"tests",
			`{"id":"T-S1-001","sessionId":"S1","hypothesisId":"H-S1-001","description":"d","status":"completed","outcome":"supports"}`,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateRaw(tt.collection, json.RawMessage(tt.doc))
			if tt.wantOK && err != nil {
				t.Errorf("ValidateRaw: %v", err)
			}
			if !tt.wantOK && err == nil {
				t.Error("ValidateRaw accepted an invalid payload")
			}
		})
	}

	if err := s.ValidateRaw("widgets", json.RawMessage(`{}`)); err == nil {
		t.Error("ValidateRaw(widgets) accepted an unknown collection")
	}
}

func TestSchemaJSON(t *testing.T) {
	s, err := NewSchemas()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"hypotheses", "assumptions", "anomalies", "critiques", "tests"} {
		raw, ok := s.SchemaJSON(name)
		if !ok {
			t.Errorf("SchemaJSON(%q) missing", name)
			continue
		}
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Errorf("SchemaJSON(%q) is not valid JSON: %v", name, err)
		}
	}
	if _, ok := s.SchemaJSON("widgets"); ok {
		t.Error("SchemaJSON(widgets) = ok")
	}
}
