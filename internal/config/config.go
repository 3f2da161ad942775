// =============================================================================
// Peilbesluit to WIS - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Values are resolved in
// three layers, later layers winning:
//   1. Built-in defaults (newConfig, applyDefaults)
//   2. The YAML file given with --config (config.yaml by default, optional)
//   3. Environment variables, optionally loaded from a .env file
//
// The validation thresholds here replace the module level constants of older
// tooling: they are passed explicitly into the validator and the converter.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the complete application configuration.
type Config struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is searched for the newest .csv/.xlsx export when InputFile is empty.
	// Default: "./data/input"
	InputDir string `yaml:"input_dir"`

	// InputFile is an explicit export to convert.
	InputFile string `yaml:"input_file"`

	// OutputDir receives one timestamped sub directory per run.
	// Default: "./data/output"
	OutputDir string `yaml:"output_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is the rotating log file (1 MB, one backup).
	// Default: "./data/output/log_rotating/main.log"
	LogFile string `yaml:"log_file"`

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// MetricsFile, when set, receives run metrics in Prometheus text format.
	MetricsFile string `yaml:"metrics_file"`

	// =========================================================================
	// VALIDATION SETTINGS
	// =========================================================================

	// Levels in mNAP. Bounds are inclusive.
	MinLevel float64 `yaml:"min_level_mnap"`
	MaxLevel float64 `yaml:"max_level_mnap"`

	// Margins in cm. Bounds are inclusive.
	MinLowerMargin float64 `yaml:"min_lower_margin_cm"`
	MaxLowerMargin float64 `yaml:"max_lower_margin_cm"`
	MinUpperMargin float64 `yaml:"min_upper_margin_cm"`
	MaxUpperMargin float64 `yaml:"max_upper_margin_cm"`

	// RaiseOnRowError aborts the run on the first row level error instead of
	// collecting all errors and dropping the affected areas.
	RaiseOnRowError bool `yaml:"raise_on_row_error"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// CreateDiagnostics writes csv_with_errors.csv.
	CreateDiagnostics *bool `yaml:"create_diagnostics"`

	// CreateXLSXDiagnostics additionally writes csv_with_errors.xlsx.
	CreateXLSXDiagnostics bool `yaml:"create_xlsx_diagnostics"`

	// CreateXML writes the FEWS-PI xml. When false only the csv artefacts are made.
	CreateXML *bool `yaml:"create_xml"`

	// CreateTestSample writes <xml>_test_sample.xml with a small part of the areas.
	CreateTestSample *bool `yaml:"create_test_sample"`

	// SampleDivisor sets the sample size: nr of areas / SampleDivisor.
	// Default: 50 (about 2%)
	SampleDivisor int `yaml:"sample_divisor"`

	// XMLFileName is the name of the xml inside the run directory.
	// Default: "PeilbesluitPi.xml"
	XMLFileName string `yaml:"xml_file_name"`
}

// Bounds are the thresholds the row validator needs.
type Bounds struct {
	MinLevel, MaxLevel             float64
	MinLowerMargin, MaxLowerMargin float64
	MinUpperMargin, MaxUpperMargin float64
}

// Bounds returns the validation thresholds of c.
func (c *Config) Bounds() Bounds {
	return Bounds{
		MinLevel:       c.MinLevel,
		MaxLevel:       c.MaxLevel,
		MinLowerMargin: c.MinLowerMargin,
		MaxLowerMargin: c.MaxLowerMargin,
		MinUpperMargin: c.MinUpperMargin,
		MaxUpperMargin: c.MaxUpperMargin,
	}
}

// DefaultBounds are the thresholds used when nothing is configured.
func DefaultBounds() Bounds {
	return Bounds{
		MinLevel:       -10,
		MaxLevel:       10,
		MinLowerMargin: 0,
		MaxLowerMargin: 1000,
		MinUpperMargin: 0,
		MaxUpperMargin: 1000,
	}
}

// WantDiagnostics reports whether csv_with_errors.csv must be written.
func (c *Config) WantDiagnostics() bool { return boolOr(c.CreateDiagnostics, true) }

// WantXML reports whether the FEWS-PI xml must be written.
func (c *Config) WantXML() bool { return boolOr(c.CreateXML, true) }

// WantTestSample reports whether the small test sample xml must be written.
func (c *Config) WantTestSample() bool { return boolOr(c.CreateTestSample, true) }

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load builds the configuration from defaults, the YAML file and the environment.
//
// PARAMETERS:
//   - configPath: The YAML file. A missing file is not an error.
//   - envFile: A .env file to load into the environment first. A missing file
//     is not an error; an empty name skips it.
//
// RETURNS:
//   - The validated configuration.
//   - An error if a file is malformed or a value is invalid.
func Load(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := newConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration with only built-in defaults applied.
func Default() *Config {
	cfg := newConfig()
	applyDefaults(cfg)
	return cfg
}

// newConfig returns a config with the numeric bounds preset. They are set
// before the YAML is read because zero is a legitimate configured bound.
func newConfig() *Config {
	b := DefaultBounds()
	return &Config{
		MinLevel:       b.MinLevel,
		MaxLevel:       b.MaxLevel,
		MinLowerMargin: b.MinLowerMargin,
		MaxLowerMargin: b.MaxLowerMargin,
		MinUpperMargin: b.MinUpperMargin,
		MaxUpperMargin: b.MaxUpperMargin,
		SampleDivisor:  50,
	}
}

// applyDefaults fills the settings left empty by the YAML file and environment.
func applyDefaults(cfg *Config) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./data/input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./data/output"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.OutputDir, "log_rotating", "main.log")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.XMLFileName == "" {
		cfg.XMLFileName = "PeilbesluitPi.xml"
	}
}

// applyEnv overrides fields from PEILBESLUIT_* environment variables.
func applyEnv(cfg *Config) error {
	stringVars := map[string]*string{
		"PEILBESLUIT_INPUT_DIR":    &cfg.InputDir,
		"PEILBESLUIT_INPUT_FILE":   &cfg.InputFile,
		"PEILBESLUIT_OUTPUT_DIR":   &cfg.OutputDir,
		"PEILBESLUIT_LOG_FILE":     &cfg.LogFile,
		"PEILBESLUIT_LOG_LEVEL":    &cfg.LogLevel,
		"PEILBESLUIT_METRICS_FILE": &cfg.MetricsFile,
	}
	for key, field := range stringVars {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}

	boolVars := map[string]**bool{
		"PEILBESLUIT_CREATE_XML":         &cfg.CreateXML,
		"PEILBESLUIT_CREATE_DIAGNOSTICS": &cfg.CreateDiagnostics,
		"PEILBESLUIT_CREATE_TEST_SAMPLE": &cfg.CreateTestSample,
	}
	for key, field := range boolVars {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*field = &b
	}

	if v, ok := os.LookupEnv("PEILBESLUIT_RAISE_ON_ROW_ERROR"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PEILBESLUIT_RAISE_ON_ROW_ERROR=%q: %w", v, err)
		}
		cfg.RaiseOnRowError = b
	}

	return nil
}

// Validate checks value ranges and creates the input and output directories.
func (c *Config) Validate() error {
	if c.MinLevel > c.MaxLevel {
		return fmt.Errorf("min_level_mnap (%v) > max_level_mnap (%v)", c.MinLevel, c.MaxLevel)
	}
	if c.MinLowerMargin > c.MaxLowerMargin {
		return fmt.Errorf("min_lower_margin_cm (%v) > max_lower_margin_cm (%v)", c.MinLowerMargin, c.MaxLowerMargin)
	}
	if c.MinUpperMargin > c.MaxUpperMargin {
		return fmt.Errorf("min_upper_margin_cm (%v) > max_upper_margin_cm (%v)", c.MinUpperMargin, c.MaxUpperMargin)
	}
	if c.SampleDivisor < 1 {
		return fmt.Errorf("sample_divisor must be at least 1, got %d", c.SampleDivisor)
	}
	if !strings.HasSuffix(strings.ToLower(c.XMLFileName), ".xml") {
		return fmt.Errorf("xml_file_name must end with .xml, got %q", c.XMLFileName)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	for _, dir := range []string{c.InputDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
