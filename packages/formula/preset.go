package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// InputKind is the kind of form field a preset variable is entered with.
// It follows from the variable's name prefix.
type InputKind string

const (
	InputNumber   InputKind = "number"   // prefix "number"
	InputDate     InputKind = "date"     // prefix "date"
	InputCheckbox InputKind = "checkbox" // prefix "bool"
	InputText     InputKind = "text"     // anything else
)

// OutputDuration formats a preset's result, taken as milliseconds, as a
// duration in years, months and days.
const OutputDuration = "date"

const millisPerDay = 1000 * 60 * 60 * 24

// Preset is a single fixed formula with labelled inputs, evaluated on its
// own rather than as part of a sheet.
type Preset struct {
	Key     string            `yaml:"key"`
	Name    string            `yaml:"name"`
	Formula string            `yaml:"formula"`
	Labels  map[string]string `yaml:"labels,omitempty"`
	Output  string            `yaml:"output,omitempty"`
}

// Input describes one field of a preset
type Input struct {
	Name  string
	Label string
	Kind  InputKind
}

// PresetResult is the outcome of a preset evaluation together with the
// text to display for it.
type PresetResult struct {
	Result  Result
	Display string
}

// BuiltinPresets returns the presets every installation has.
func BuiltinPresets() []Preset {
	return []Preset{
		{
			Key:     "data_between",
			Name:    "Days between dates",
			Formula: "boolIncludeStartDate * 1000 * 60 * 60 * 24 - (date1 - date2)",
			Labels: map[string]string{
				"boolIncludeStartDate": "Include start date",
				"date1":                "Start date",
				"date2":                "End date",
			},
			Output: OutputDuration,
		},
		{
			Key:     "area_of_circle",
			Name:    "Area of a circle",
			Formula: "PI * radius * radius",
		},
	}
}

// FindPreset returns the preset with the given key
func FindPreset(presets []Preset, key string) (Preset, error) {
	for _, p := range presets {
		if p.Key == key {
			return p, nil
		}
	}
	return Preset{}, NewApplicationError(NotFound, fmt.Sprintf("preset %s not found", key))
}

// Validate checks that the preset has a key and a formula that compiles
func (p Preset) Validate() error {
	if p.Key == "" {
		return NewApplicationError(InvalidArgument, "preset without key")
	}
	if _, err := Compile(p.Formula); err != nil {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("preset %s: %v", p.Key, err))
	}
	if p.Output != "" && p.Output != OutputDuration {
		return NewApplicationError(InvalidArgument, fmt.Sprintf("preset %s: unknown output %q", p.Key, p.Output))
	}
	return nil
}

// Inputs returns the fields of the preset, one per variable of its
// formula, in order of first occurrence.
func (p Preset) Inputs() []Input {
	vars := ExtractVariables(p.Formula, Symbols(false))
	inputs := make([]Input, len(vars))
	for i, name := range vars {
		label, ok := p.Labels[name]
		if !ok {
			label = name
		}
		inputs[i] = Input{Name: name, Label: label, Kind: InputKindOf(name)}
	}
	return inputs
}

// InputKindOf derives the input kind from a variable name prefix
func InputKindOf(name string) InputKind {
	switch {
	case strings.HasPrefix(name, "number"):
		return InputNumber
	case strings.HasPrefix(name, "date"):
		return InputDate
	case strings.HasPrefix(name, "bool"):
		return InputCheckbox
	}
	return InputText
}

// InputValue converts the raw text of a field. Dates become milliseconds
// since the epoch (0 if empty, NaN if unparseable), checkboxes 1 or 0, and
// everything else a number with NaN mapped to 0.
func InputValue(kind InputKind, raw string) float64 {
	raw = strings.TrimSpace(raw)
	switch kind {
	case InputDate:
		if raw == "" {
			return 0
		}
		t, err := dateparse.ParseIn(raw, time.UTC)
		if err != nil {
			tracer().Debugf("cannot parse date %q: %v", raw, err)
			return math.NaN()
		}
		return float64(t.UnixMilli())
	case InputCheckbox:
		if isChecked(raw) {
			return 1
		}
		return 0
	}
	v := CoerceNumber(raw)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func isChecked(raw string) bool {
	switch strings.ToLower(raw) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}

// Evaluate evaluates the preset in radian mode with non-finite results
// treated as failures. Missing values count as empty fields.
func (p Preset) Evaluate(values map[string]string) PresetResult {
	table := Symbols(false)
	ctx := BuildContext(table, nil, nil, nil)
	for _, in := range p.Inputs() {
		ctx[in.Name] = Constant(InputValue(in.Kind, values[in.Name]))
	}

	res := EvaluateWithPolicy(p.Formula, ctx, StrictPolicy)
	if !res.OK {
		tracer().Infof("preset %s: %s", p.Key, res.Message)
		return PresetResult{Result: res, Display: "Error"}
	}
	if p.Output == OutputDuration {
		return PresetResult{Result: res, Display: FormatDuration(res.Value)}
	}
	return PresetResult{Result: res, Display: formatNumber(res.Value)}
}

// FormatDuration renders milliseconds as whole years (365 days), months
// (30 days) and days, followed by the total number of days. Partial days
// round down, so -1.5 days count as -2.
func FormatDuration(millis float64) string {
	total := int64(math.Floor(millis / millisPerDay))
	sign, mag := "", total
	if total < 0 {
		sign, mag = "-", -total
	}
	years := mag / 365
	rest := mag % 365
	months := rest / 30
	days := rest % 30
	return fmt.Sprintf("%s%d years %d months %d days, %s%d days total", sign, years, months, days, sign, mag)
}

// PresetKeys returns the keys of presets, sorted
func PresetKeys(presets []Preset) []string {
	keys := make([]string, len(presets))
	for i, p := range presets {
		keys[i] = p.Key
	}
	sort.Strings(keys)
	return keys
}
