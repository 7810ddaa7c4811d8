package config

import (
	"fmt"
	"os"

	"github.com/edoli/webtool/packages/formula"
	"gopkg.in/yaml.v3"
)

// SheetFile is the YAML form of a sheet:
//
//	formulas:
//	  - sin(x)
//	  - r1 × 2
//	variables:
//	  x: 30
//	degree: true
type SheetFile struct {
	Formulas  []string           `yaml:"formulas"`
	Variables map[string]Binding `yaml:"variables,omitempty"`
	Degree    *bool              `yaml:"degree,omitempty"`
}

// Binding is the raw text of a variable. Any YAML scalar is accepted, so
// numbers need no quotes.
type Binding string

// UnmarshalYAML implements yaml.Unmarshaler
func (b *Binding) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: variable value must be a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*b = ""
		return nil
	}
	*b = Binding(node.Value)
	return nil
}

// ParseSheet decodes a sheet file. Sheets that do not set degree use
// defaultDegree.
func ParseSheet(data []byte, defaultDegree bool) (formula.State, error) {
	var file SheetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return formula.State{}, fmt.Errorf("failed to parse sheet: %w", err)
	}
	if len(file.Formulas) == 0 {
		return formula.State{}, fmt.Errorf("sheet has no formulas")
	}

	state := formula.State{
		Templates: file.Formulas,
		Variables: make(map[string]string, len(file.Variables)),
		UseDegree: defaultDegree,
	}
	for name, value := range file.Variables {
		state.Variables[name] = string(value)
	}
	if file.Degree != nil {
		state.UseDegree = *file.Degree
	}
	return state, nil
}

// LoadSheet reads a sheet file
func LoadSheet(path string, defaultDegree bool) (formula.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return formula.State{}, fmt.Errorf("failed to read sheet: %w", err)
	}
	state, err := ParseSheet(data, defaultDegree)
	if err != nil {
		return formula.State{}, fmt.Errorf("%s: %w", path, err)
	}
	tracer().Debugf("loaded sheet %s with %d formulas", path, len(state.Templates))
	return state, nil
}

// MarshalSheet encodes state as a sheet file
func MarshalSheet(state formula.State) ([]byte, error) {
	degree := state.UseDegree
	file := SheetFile{
		Formulas:  state.Templates,
		Variables: make(map[string]Binding, len(state.Variables)),
		Degree:    &degree,
	}
	for name, value := range state.Variables {
		file.Variables[name] = Binding(value)
	}
	return yaml.Marshal(&file)
}

// SaveSheet writes state to path as a sheet file
func SaveSheet(path string, state formula.State) error {
	data, err := MarshalSheet(state)
	if err != nil {
		return fmt.Errorf("failed to encode sheet: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sheet: %w", err)
	}
	return nil
}
