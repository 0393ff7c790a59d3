// Package features applies a declarative feature spec to an interaction table:
// dropping columns, attaching columns from external sources, and fixing each
// feature's type before encoding.
package features

import (
	"errors"
	"fmt"
	"os"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/config"
	"gopkg.in/yaml.v3"
)

// Delete is the feature value that drops a column.
const Delete = "del"

var ErrSpec = errors.New("invalid feature spec")

// categoricalTypes are the feature type names that select categorical encoding.
// Any other type is continuous.
var categoricalTypes = map[string]bool{
	"str":         true,
	"string":      true,
	"object":      true,
	"category":    true,
	"cate":        true,
	"categorical": true,
}

func IsCategoricalType(t string) bool {
	return categoricalTypes[t]
}

// Feature is one entry of a Spec.
type Feature struct {
	Name   string
	Delete bool
	Type   string
	// Column is the directory holding "<mode>.csv" files that supply this
	// feature. Empty when the feature already exists in the input table.
	Column string
}

func (f Feature) Categorical() bool {
	return IsCategoricalType(f.Type)
}

// Spec is a feature spec document. Features keep the order in which the
// document declares them.
type Spec struct {
	TrainData string
	ValidData string
	TestData  string
	Features  []Feature
}

// FileFor returns the input file name the spec was written for in mode.
func (s *Spec) FileFor(mode config.Mode) string {
	switch mode {
	case config.ModeTrain:
		return s.TrainData
	case config.ModeValid:
		return s.ValidData
	case config.ModeTest:
		return s.TestData
	default:
		return ""
	}
}

type rawSpec struct {
	TrainData string    `yaml:"train_data"`
	ValidData string    `yaml:"val_data"`
	TestData  string    `yaml:"test_data"`
	Features  yaml.Node `yaml:"features"`
}

type rawFeature struct {
	Type   string `yaml:"type"`
	Column string `yaml:"column"`
}

// UnmarshalYAML decodes the spec, walking the features mapping node by node so
// that declaration order survives.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	raw := rawSpec{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.TrainData = raw.TrainData
	s.ValidData = raw.ValidData
	s.TestData = raw.TestData
	s.Features = nil

	if raw.Features.Kind == 0 {
		return nil
	}
	if raw.Features.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: features must be a mapping, line %d", ErrSpec, raw.Features.Line)
	}

	content := raw.Features.Content
	for i := 0; i+1 < len(content); i += 2 {
		key, value := content[i], content[i+1]
		feature := Feature{Name: key.Value}

		switch value.Kind {
		case yaml.ScalarNode:
			if value.Value != Delete {
				return fmt.Errorf("%w: feature %q must be %q or a mapping, got %q", ErrSpec, key.Value, Delete, value.Value)
			}
			feature.Delete = true
		case yaml.MappingNode:
			info := rawFeature{}
			if err := value.Decode(&info); err != nil {
				return fmt.Errorf("%w: feature %q: %w", ErrSpec, key.Value, err)
			}
			if info.Type == "" {
				return fmt.Errorf("%w: feature %q has no type", ErrSpec, key.Value)
			}
			feature.Type = info.Type
			feature.Column = info.Column
		default:
			return fmt.Errorf("%w: feature %q, line %d", ErrSpec, key.Value, value.Line)
		}

		s.Features = append(s.Features, feature)
	}
	return nil
}

// ParseSpec decodes a feature spec from JSON or YAML.
func ParseSpec(data []byte) (*Spec, error) {
	spec := &Spec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpec, err)
	}
	return spec, nil
}

// LoadSpec reads and decodes the feature spec at path.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feature spec %q: %w", path, err)
	}
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return spec, nil
}
