package model

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed attributes.yaml
var defaultSchemaYAML []byte

// Direction controls how raw attribute values map to ranks.
type Direction string

const (
	// Descending ranks the highest raw value first (higher is better).
	Descending Direction = "desc"
	// Ascending ranks the lowest raw value first (lower is better).
	Ascending Direction = "asc"
)

// Attribute describes one ranked column of the dataset.
type Attribute struct {
	Key         string    `yaml:"key" json:"key"`
	Label       string    `yaml:"label" json:"label"`
	Direction   Direction `yaml:"direction" json:"direction"`
	Required    bool      `yaml:"required" json:"required"`
	Explanatory bool      `yaml:"explanatory" json:"explanatory"` // contributes to naive1
	Aliases     []string  `yaml:"aliases" json:"aliases"`
}

// Schema is the ordered attribute set plus the engine's constant column.
type Schema struct {
	CountryAliases []string    `yaml:"country_aliases"`
	ConstantLabel  string      `yaml:"constant_label"`
	ConstantValue  int         `yaml:"constant_value"`
	Attributes     []Attribute `yaml:"attributes"`

	byKey map[string]int
}

// DefaultSchema returns the embedded World Happiness Report schema.
func DefaultSchema() *Schema {
	s, err := ParseSchema(defaultSchemaYAML)
	if err != nil {
		panic("model: embedded attribute schema is invalid: " + err.Error())
	}
	return s
}

// LoadSchema reads a schema file. An empty path yields the default schema.
func LoadSchema(path string) (*Schema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	return ParseSchema(data)
}

// ParseSchema decodes and validates a YAML schema.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "schema: unmarshal")
	}
	if len(s.Attributes) == 0 {
		return nil, eris.New("schema: no attributes defined")
	}
	if s.ConstantValue <= 0 {
		return nil, eris.New("schema: constant_value must be positive")
	}
	if s.ConstantLabel == "" {
		s.ConstantLabel = "Y"
	}

	s.byKey = make(map[string]int, len(s.Attributes))
	for i, a := range s.Attributes {
		if a.Key == "" {
			return nil, eris.Errorf("schema: attribute %d has no key", i)
		}
		if _, dup := s.byKey[a.Key]; dup {
			return nil, eris.Errorf("schema: duplicate attribute key %q", a.Key)
		}
		switch a.Direction {
		case Ascending, Descending:
		default:
			return nil, eris.Errorf("schema: attribute %q has invalid direction %q", a.Key, a.Direction)
		}
		s.byKey[a.Key] = i
	}
	return &s, nil
}

// Index returns the column position of the attribute key, or -1.
func (s *Schema) Index(key string) int {
	if i, ok := s.byKey[key]; ok {
		return i
	}
	return -1
}

// Len returns the number of ranked attributes.
func (s *Schema) Len() int {
	return len(s.Attributes)
}

// Explanatory returns the column positions that feed the naive1 mean.
func (s *Schema) Explanatory() []int {
	var idx []int
	for i, a := range s.Attributes {
		if a.Explanatory {
			idx = append(idx, i)
		}
	}
	return idx
}

// RequiredCount is the number of required fields, country included.
func (s *Schema) RequiredCount() int {
	n := 1
	for _, a := range s.Attributes {
		if a.Required {
			n++
		}
	}
	return n
}

// EngineAttributeNames returns the attribute labels sent to the engine,
// ending with the constant column label.
func (s *Schema) EngineAttributeNames() []string {
	names := make([]string, 0, len(s.Attributes)+1)
	for _, a := range s.Attributes {
		names = append(names, a.Label)
	}
	return append(names, s.ConstantLabel)
}
