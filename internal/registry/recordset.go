package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RecordSet is an in-memory RecordSource.
type RecordSet struct {
	Problem []Record `json:"problem"`
	Valid   []Record `json:"valid"`
}

func (s *RecordSet) Find(_ context.Context, c Claim) (Hits, error) {
	var h Hits
	if s == nil {
		return h, nil
	}
	for i := range s.Problem {
		r := &s.Problem[i]
		if matchesProblem(*r, c) {
			h.Problem = r
			break
		}
	}
	if c.PlateNumber != "" {
		for i := range s.Valid {
			r := &s.Valid[i]
			if NormalizePlate(r.PlateNumber) == c.PlateNumber {
				h.Valid = r
				break
			}
		}
	}
	return h, nil
}

func matchesProblem(r Record, c Claim) bool {
	if c.PlateNumber != "" && NormalizePlate(r.PlateNumber) == c.PlateNumber {
		return true
	}
	if c.EngineNumber != "" && NormalizeIdentifier(r.EngineNumber) == c.EngineNumber {
		return true
	}
	if c.ChassisNumber != "" && NormalizeIdentifier(r.ChassisNumber) == c.ChassisNumber {
		return true
	}
	return false
}

// Fixture holds one RecordSet per registry.
type Fixture struct {
	Insurance *RecordSet `json:"insurance"`
	Emission  *RecordSet `json:"emission"`
	HPG       *RecordSet `json:"hpg"`
}

// Sources returns the fixture's sets keyed by registry; missing sets are empty.
func (f Fixture) Sources() map[Name]RecordSource {
	orEmpty := func(s *RecordSet) *RecordSet {
		if s == nil {
			return &RecordSet{}
		}
		return s
	}
	return map[Name]RecordSource{
		Insurance: orEmpty(f.Insurance),
		Emission:  orEmpty(f.Emission),
		HPG:       orEmpty(f.HPG),
	}
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(b)
}

// ParseFixture decodes and validates YAML fixture content. Scalars are read
// as written, so unquoted dates and numeric identifiers stay strings.
func ParseFixture(b []byte) (Fixture, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return Fixture{}, nil
	}
	literalScalars(&doc)

	var raw any
	if err := doc.Decode(&raw); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture yaml: %w", err)
	}
	if raw == nil {
		return Fixture{}, nil
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return Fixture{}, fmt.Errorf("convert fixture: %w", err)
	}
	if err := validateJSON(fixtureSchema, js); err != nil {
		return Fixture{}, fmt.Errorf("invalid fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(js, &f); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return f, nil
}

// literalScalars retags every non-null scalar as a string.
func literalScalars(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Tag != "!!null" {
		n.Tag = "!!str"
	}
	for _, c := range n.Content {
		literalScalars(c)
	}
}
