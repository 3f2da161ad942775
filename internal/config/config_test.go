package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load(filepath.Join(dir, "missing.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, "./data/input", cfg.InputDir)
	assert.Equal(t, "./data/output", cfg.OutputDir)
	assert.Equal(t, filepath.Join("data", "output", "log_rotating", "main.log"), filepath.Clean(cfg.LogFile))
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultBounds(), cfg.Bounds())
	assert.Equal(t, 50, cfg.SampleDivisor)
	assert.Equal(t, "PeilbesluitPi.xml", cfg.XMLFileName)
	assert.True(t, cfg.WantDiagnostics())
	assert.True(t, cfg.WantXML())
	assert.True(t, cfg.WantTestSample())
	assert.False(t, cfg.RaiseOnRowError)

	assert.DirExists(t, filepath.Join(dir, "data", "input"))
	assert.DirExists(t, filepath.Join(dir, "data", "output"))
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
input_dir: `+filepath.Join(dir, "in")+`
output_dir: `+filepath.Join(dir, "out")+`
log_level: debug
min_level_mnap: -5
max_level_mnap: 5
max_upper_margin_cm: 200
create_xml: false
create_test_sample: false
raise_on_row_error: true
sample_divisor: 10
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, Bounds{
		MinLevel: -5, MaxLevel: 5,
		MinLowerMargin: 0, MaxLowerMargin: 1000,
		MinUpperMargin: 0, MaxUpperMargin: 200,
	}, cfg.Bounds())
	assert.False(t, cfg.WantXML())
	assert.False(t, cfg.WantTestSample())
	assert.True(t, cfg.WantDiagnostics())
	assert.True(t, cfg.RaiseOnRowError)
	assert.Equal(t, 10, cfg.SampleDivisor)
	assert.Equal(t, filepath.Join(dir, "out", "log_rotating", "main.log"), cfg.LogFile)
}

func TestLoad_ZeroBoundIsKept(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
input_dir: `+filepath.Join(dir, "in")+`
output_dir: `+filepath.Join(dir, "out")+`
min_level_mnap: 0
max_level_mnap: 0
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Zero(t, cfg.MinLevel)
	assert.Zero(t, cfg.MaxLevel)
}

func TestLoad_EnvFileOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
input_dir: `+filepath.Join(dir, "in")+`
output_dir: `+filepath.Join(dir, "out")+`
log_level: debug
`)
	envFile := writeFile(t, dir, ".env", "PEILBESLUIT_LOG_LEVEL=warn\nPEILBESLUIT_CREATE_XML=false\nPEILBESLUIT_RAISE_ON_ROW_ERROR=true\n")

	// godotenv does not override variables that are already set
	t.Setenv("PEILBESLUIT_LOG_LEVEL", "")
	os.Unsetenv("PEILBESLUIT_LOG_LEVEL")
	t.Setenv("PEILBESLUIT_CREATE_XML", "")
	os.Unsetenv("PEILBESLUIT_CREATE_XML")
	t.Setenv("PEILBESLUIT_RAISE_ON_ROW_ERROR", "")
	os.Unsetenv("PEILBESLUIT_RAISE_ON_ROW_ERROR")

	cfg, err := Load(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.WantXML())
	assert.True(t, cfg.RaiseOnRowError)
}

func TestLoad_EnvVariables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PEILBESLUIT_INPUT_DIR", filepath.Join(dir, "in"))
	t.Setenv("PEILBESLUIT_OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("PEILBESLUIT_INPUT_FILE", "export.csv")
	t.Setenv("PEILBESLUIT_CREATE_DIAGNOSTICS", "0")

	cfg, err := Load("", filepath.Join(dir, "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "in"), cfg.InputDir)
	assert.Equal(t, "export.csv", cfg.InputFile)
	assert.False(t, cfg.WantDiagnostics())
}

func TestLoad_InvalidEnvBool(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PEILBESLUIT_INPUT_DIR", filepath.Join(dir, "in"))
	t.Setenv("PEILBESLUIT_OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("PEILBESLUIT_CREATE_XML", "maybe")

	_, err := Load("", "")
	assert.ErrorContains(t, err, "PEILBESLUIT_CREATE_XML")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "min_level_mnap: [1, 2\n")

	_, err := Load(path, "")
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "level bounds swapped", mutate: func(c *Config) { c.MinLevel, c.MaxLevel = 1, -1 }, wantErr: "min_level_mnap"},
		{name: "lower margins swapped", mutate: func(c *Config) { c.MinLowerMargin = 2000 }, wantErr: "min_lower_margin_cm"},
		{name: "upper margins swapped", mutate: func(c *Config) { c.MaxUpperMargin = -1 }, wantErr: "min_upper_margin_cm"},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "log_level"},
		{name: "sample divisor", mutate: func(c *Config) { c.SampleDivisor = -3 }, wantErr: "sample_divisor"},
		{name: "xml name", mutate: func(c *Config) { c.XMLFileName = "out.txt" }, wantErr: "xml_file_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := Default()
			cfg.InputDir = filepath.Join(dir, "in")
			cfg.OutputDir = filepath.Join(dir, "out")
			tt.mutate(cfg)

			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
