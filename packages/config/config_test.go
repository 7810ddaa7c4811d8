package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edoli/webtool/packages/formula"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.Degree)
	assert.False(t, cfg.StrictFinite)
	assert.Equal(t, "1", cfg.DefaultBinding)
	assert.Equal(t, 4, cfg.Precision)
	assert.Equal(t, "en", cfg.Locale)
	assert.NoError(t, Validate(cfg))
	assert.Equal(t, formula.DefaultPolicy, cfg.Policy())
}

func TestInterpolateEnv(t *testing.T) {
	getenv := func(key string) string {
		if key == "CALC_LOCALE" {
			return "de"
		}
		return ""
	}
	tests := []struct {
		input    string
		expected string
	}{
		{"locale: ${CALC_LOCALE}", "locale: de"},
		{"locale: ${CALC_LOCALE:-en}", "locale: de"},
		{"locale: ${UNSET:-fr}", "locale: fr"},
		{"locale: ${UNSET}", "locale: "},
		{"degree: true", "degree: true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, string(interpolateEnv([]byte(tt.input), getenv)))
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
degree: true
strict_finite: true
default_binding: "0"
precision: 2
locale: ${LOC:-de}
presets:
  - key: bmi
    name: Body mass index
    formula: numberWeight / (numberHeight ^ 2)
    labels:
      numberWeight: Weight (kg)
  - key: area_of_circle
    name: Circle
    formula: PI * numberR ^ 2
`), noEnv)
	require.NoError(t, err)
	assert.True(t, cfg.Degree)
	assert.Equal(t, formula.StrictPolicy, cfg.Policy())
	assert.Equal(t, "0", cfg.DefaultBinding)
	assert.Equal(t, 2, cfg.Precision)
	assert.Equal(t, "de", cfg.Locale)
	assert.Equal(t, "~/.formulacalc_history", cfg.HistoryFile, "unset keys keep their defaults")

	presets := cfg.AllPresets()
	assert.Equal(t, []string{"area_of_circle", "bmi", "data_between"}, formula.PresetKeys(presets))
	circle, err := formula.FindPreset(presets, "area_of_circle")
	require.NoError(t, err)
	assert.Equal(t, "Circle", circle.Name)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"syntax", "degree: [true"},
		{"precision", "precision: 40"},
		{"locale", "locale: ''"},
		{"preset formula", "presets:\n  - key: k\n    formula: '1+'"},
		{"preset key", "presets:\n  - formula: '1'"},
		{"duplicate preset", "presets:\n  - {key: k, formula: '1'}\n  - {key: k, formula: '2'}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), noEnv)
			assert.Error(t, err)
		})
	}
}

func TestSheetOptions(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	cfg := Defaults()
	cfg.Degree = true
	cfg.DefaultBinding = "30"
	sheet := formula.NewSheet(cfg.SheetOptions()...)
	sheet.AddFormula("sin(x)")
	results := sheet.Evaluate()
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5, results[0].Value, 1e-9)
}

func TestLoad(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.config")
	defer teardown()
	//
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("precision: 6\nhistory_file: hist\n"), 0o644))

	cfg, resolved, err := LoadWithPath(path, noEnv)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Precision)
	assert.Equal(t, dir, cfg.BaseDir)
	assert.Equal(t, filepath.Join(dir, "hist"), cfg.HistoryFile)
	assert.True(t, filepath.IsAbs(resolved))

	cfg, err = Load("", func(key string) string {
		if key == EnvConfig {
			return path
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Precision)

	_, err = Load(filepath.Join(dir, "missing.yaml"), noEnv)
	assert.Error(t, err)
	_, err = Load("", func(key string) string { return filepath.Join(dir, "missing.yaml") })
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, "x"), expandHome("~/x"))
	assert.Equal(t, "/abs", expandHome("/abs"))
	assert.Equal(t, "~user/x", expandHome("~user/x"))
}
