// Package schema validates plan documents against a JSON schema before
// they are committed to the store.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed plan.schema.json
var planSchema string

// Validator checks documents against a compiled JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded plan schema.
func NewValidator() (*Validator, error) {
	return NewValidatorFromString("plan.schema.json", planSchema)
}

// NewValidatorFromString compiles a custom schema. The plan service only
// needs the embedded one; this exists for tests and alternative deployments.
func NewValidatorFromString(name, schemaJSON string) (*Validator, error) {
	sch, err := jsonschema.CompileString(name, schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: sch}, nil
}

// Validate checks a raw JSON document against the schema. It returns the
// list of violated constraints, one message per violation, or nil when the
// document is valid. A document that is not parseable JSON is reported as
// a single violation.
func (v *Validator) Validate(doc []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return []string{fmt.Sprintf("document is not valid JSON: %v", err)}
	}

	err := v.schema.Validate(value)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}

	var msgs []string
	for _, be := range ve.BasicOutput().Errors {
		// Skip the synthetic root aggregate; keep concrete violations.
		if be.KeywordLocation == "" {
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", be.InstanceLocation, be.Error))
	}
	if len(msgs) == 0 {
		msgs = []string{ve.Error()}
	}
	return msgs
}
