// Package config holds the settings of the formula calculator and reads
// sheet files.
package config

import (
	"github.com/edoli/webtool/packages/formula"
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'webtool.config'.
func tracer() tracing.Trace {
	return tracing.Select("webtool.config")
}

// Config represents the complete calculator configuration
type Config struct {
	BaseDir        string           `yaml:"-"`               // Directory containing the config file
	Degree         bool             `yaml:"degree"`          // Start sheets in degree mode
	StrictFinite   bool             `yaml:"strict_finite"`   // Treat NaN and Infinity as errors
	DefaultBinding string           `yaml:"default_binding"` // Value of newly referenced variables
	Precision      int              `yaml:"precision"`       // Decimal places when printing results (-1 = shortest exact)
	Locale         string           `yaml:"locale"`          // BCP 47 tag for number formatting
	HistoryFile    string           `yaml:"history_file"`    // REPL history, empty to disable
	Presets        []formula.Preset `yaml:"presets"`         // Additional special-calculator presets
}

// Defaults returns a Config with default values
func Defaults() *Config {
	return &Config{
		DefaultBinding: formula.DefaultBinding,
		Precision:      4,
		Locale:         "en",
		HistoryFile:    "~/.formulacalc_history",
	}
}

// Policy returns the evaluation policy for non-finite results
func (c *Config) Policy() formula.Policy {
	return formula.Policy{StrictFinite: c.StrictFinite}
}

// SheetOptions returns the options for sheets created under this config
func (c *Config) SheetOptions() []formula.Option {
	return []formula.Option{
		formula.WithDegree(c.Degree),
		formula.WithPolicy(c.Policy()),
		formula.WithDefaultBinding(c.DefaultBinding),
	}
}

// AllPresets returns the built-in presets followed by the configured ones.
// A configured preset replaces a built-in preset with the same key.
func (c *Config) AllPresets() []formula.Preset {
	configured := make(map[string]bool, len(c.Presets))
	for _, p := range c.Presets {
		configured[p.Key] = true
	}
	var presets []formula.Preset
	for _, p := range formula.BuiltinPresets() {
		if !configured[p.Key] {
			presets = append(presets, p)
		}
	}
	return append(presets, c.Presets...)
}
