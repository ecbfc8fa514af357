package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate checks instance against the given JSON Schema source, the way
// the teacher's pkg/schema.Validate compiles an embedded schema string and
// validates a decoded instance against it.
func Validate(schema string, instance json.RawMessage) error {
	sch, err := jsonschema.CompileString("config.schema.json", schema)
	if err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return fmt.Errorf("config: decode instance: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
