package config

import (
	"fmt"
	"strings"
)

// Config represents the complete configuration for the qrscanner application,
// loadable from configuration files, environment variables, and CLI flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detect DetectConfig `mapstructure:"detect" yaml:"detect" json:"detect"`
	Scan   ScanConfig   `mapstructure:"scan" yaml:"scan" json:"scan"`
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// DetectConfig contains strategy orchestration settings.
type DetectConfig struct {
	// PrepassScales are the robust-engine scale factors tried before any
	// filtering. Empty selects the built-in defaults.
	PrepassScales []float64 `mapstructure:"prepass_scales" yaml:"prepass_scales" json:"prepass_scales"`

	// DisablePrepass skips the robust pre-pass entirely.
	DisablePrepass bool `mapstructure:"disable_prepass" yaml:"disable_prepass" json:"disable_prepass"`
}

// ScanConfig contains live-scan loop settings.
type ScanConfig struct {
	MaxFrameDim     int `mapstructure:"max_frame_dim" yaml:"max_frame_dim" json:"max_frame_dim"`
	FrameIntervalMS int `mapstructure:"frame_interval_ms" yaml:"frame_interval_ms" json:"frame_interval_ms"`
}

// OutputConfig contains result formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string `mapstructure:"host" yaml:"host" json:"host"`
	Port        int    `mapstructure:"port" yaml:"port" json:"port"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	CORSOrigin  string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Detect:   DetectConfig{},
		Scan:     ScanConfig{MaxFrameDim: 800},
		Output:   OutputConfig{Format: "text"},
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8080,
			MaxUploadMB: 50,
			TimeoutSec:  30,
			CORSOrigin:  "*",
		},
	}
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

var validFormats = []string{"text", "json", "yaml"}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level %q (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format %q (must be one of: %s)",
			c.Output.Format, strings.Join(validFormats, ", "))
	}
	for _, s := range c.Detect.PrepassScales {
		if s <= 0 {
			return fmt.Errorf("invalid pre-pass scale %g (must be positive)", s)
		}
	}
	if c.Scan.MaxFrameDim < 0 {
		return fmt.Errorf("invalid max frame dimension %d", c.Scan.MaxFrameDim)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size %d MB", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid server timeout %d seconds", c.Server.TimeoutSec)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
