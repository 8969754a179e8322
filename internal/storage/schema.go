// JSON Schema generation and raw-payload validation for the five
// document types.

package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// Schemas holds the generated JSON Schemas and their compiled validators.
// Incoming raw payloads are checked here before they reach a store's
// typed validator, so the API can answer with field-level messages
// instead of a single decode error.
type Schemas struct {
	raw      map[string]json.RawMessage
	compiled map[string]*gojsonschema.Schema
}

// NewSchemas reflects the five document types into schemas. Fails only on
// a programming error in the type definitions.
func NewSchemas() (*Schemas, error) {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	types := map[string]any{
		"hypotheses":  &Hypothesis{},
		"assumptions": &Assumption{},
		"anomalies":   &Anomaly{},
		"critiques":   &Critique{},
		"tests":       &TestRecord{},
	}
	s := &Schemas{
		raw:      make(map[string]json.RawMessage, len(types)),
		compiled: make(map[string]*gojsonschema.Schema, len(types)),
	}
	for name, t := range types {
		b, err := json.Marshal(r.Reflect(t))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s schema: %w", name, err)
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
		}
		s.raw[name] = b
		s.compiled[name] = compiled
	}
	return s, nil
}

// SchemaJSON returns the generated schema for a collection.
func (s *Schemas) SchemaJSON(collection string) (json.RawMessage, bool) {
	b, ok := s.raw[collection]
	return b, ok
}

// ValidateRaw checks a raw payload against a collection's schema. A nil
// error means the payload is well-shaped; the store's typed validator
// still runs afterwards.
func (s *Schemas) ValidateRaw(collection string, raw json.RawMessage) error {
	compiled, ok := s.compiled[collection]
	if !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}
	result, err := compiled.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("payload does not match %s schema: %s", collection, strings.Join(msgs, "; "))
}
