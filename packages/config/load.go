package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable pointing at the config file
const EnvConfig = "FORMULACALC_CONFIG"

// FileName is the name of the config file searched in the working
// directory and in ~/.config/formulacalc
const FileName = "formulacalc.yaml"

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations; finding no file
// there is not an error and yields the defaults.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the
// resolved path, which is empty if the defaults were used.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		tracer().Debugf("no config file found, using defaults")
		cfg := Defaults()
		cfg.HistoryFile = expandHome(cfg.HistoryFile)
		return cfg, "", nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data, getenv)
	if err != nil {
		return nil, "", err
	}
	cfg.BaseDir = filepath.Dir(absPath)

	// Resolve relative history path
	if cfg.HistoryFile != "" && !strings.HasPrefix(cfg.HistoryFile, "~") && !filepath.IsAbs(cfg.HistoryFile) {
		cfg.HistoryFile = filepath.Join(cfg.BaseDir, cfg.HistoryFile)
	}
	cfg.HistoryFile = expandHome(cfg.HistoryFile)

	tracer().Infof("loaded config %s", absPath)
	return cfg, absPath, nil
}

// Parse decodes and validates configuration YAML, starting from the
// defaults.
func Parse(data []byte, getenv func(string) string) (*Config, error) {
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Precision < -1 || cfg.Precision > 17 {
		errs = append(errs, fmt.Sprintf("invalid precision: %d (must be -1 to 17)", cfg.Precision))
	}
	if cfg.Locale == "" {
		errs = append(errs, "locale is required")
	}

	keys := make(map[string]bool)
	for i, p := range cfg.Presets {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("presets[%d]: %v", i, err))
			continue
		}
		if keys[p.Key] {
			errs = append(errs, fmt.Sprintf("presets[%d]: duplicate key %s", i, p.Key))
		}
		keys[p.Key] = true
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > FORMULACALC_CONFIG env > ./formulacalc.yaml > ~/.config/formulacalc/formulacalc.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%s file not found: %s", EnvConfig, envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "formulacalc", FileName)
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}
	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
