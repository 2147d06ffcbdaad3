package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func recordSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"plate_number":   str,
			"policy_number":  str,
			"engine_number":  str,
			"chassis_number": str,
			"status":         str,
			"owner_name":     str,
			"provider":       str,
			"expires_on":     map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}`},
		},
		"anyOf": []any{
			map[string]any{"required": []string{"plate_number"}},
			map[string]any{"required": []string{"engine_number"}},
			map[string]any{"required": []string{"chassis_number"}},
		},
	}
}

// BuildLookupResponseSchema describes the body of a registry API lookup.
func BuildLookupResponseSchema() map[string]any {
	nullableRecord := map[string]any{"oneOf": []any{map[string]any{"type": "null"}, recordSchema()}}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"problem": nullableRecord,
			"valid":   nullableRecord,
		},
	}
}

// BuildFixtureSchema describes a registry fixture file.
func BuildFixtureSchema() map[string]any {
	set := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"problem": map[string]any{"type": "array", "items": recordSchema()},
			"valid":   map[string]any{"type": "array", "items": recordSchema()},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			string(Insurance): set,
			string(Emission):  set,
			string(HPG):       set,
		},
	}
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

var (
	lookupResponseSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema("lookup_response.json", BuildLookupResponseSchema())
	})
	fixtureSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema("fixture.json", BuildFixtureSchema())
	})
)

// validateJSON checks data against a compiled schema.
func validateJSON(schema func() (*jsonschema.Schema, error), data []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
