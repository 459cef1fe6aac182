package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, 800, cfg.Scan.MaxFrameDim)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Detect.DisablePrepass)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }},
		{"zero prepass scale", func(c *Config) { c.Detect.PrepassScales = []float64{0.5, 0} }},
		{"negative prepass scale", func(c *Config) { c.Detect.PrepassScales = []float64{-1} }},
		{"negative frame dim", func(c *Config) { c.Scan.MaxFrameDim = -1 }},
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"zero timeout", func(c *Config) { c.Server.TimeoutSec = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qrscanner.yaml")
	content := `
log_level: debug
detect:
  prepass_scales: [1.0, 0.5]
  disable_prepass: true
output:
  format: json
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := NewLoaderWith(viper.New())
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []float64{1.0, 0.5}, cfg.Detect.PrepassScales)
	assert.True(t, cfg.Detect.DisablePrepass)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 9090, cfg.Server.Port)

	// Untouched keys keep their defaults.
	assert.Equal(t, 800, cfg.Scan.MaxFrameDim)
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadWithFileMissing(t *testing.T) {
	loader := NewLoaderWith(viper.New())
	_, err := loader.LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadWithFileRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrscanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: shouting\n"), 0o600))

	loader := NewLoaderWith(viper.New())
	_, err := loader.LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("QRSCANNER_OUTPUT_FORMAT", "yaml")

	loader := NewLoaderWith(viper.New())
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Output.Format)
}

func TestGetConfigSearchPaths(t *testing.T) {
	paths := GetConfigSearchPaths()
	assert.Contains(t, paths, ".")
	assert.Contains(t, paths, "/etc/qrscanner")
}
