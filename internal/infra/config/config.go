// Package config loads the application configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ShellConfig holds shell session settings.
type ShellConfig struct {
	ShellPath       string `yaml:"shell_path"`        // unelevated shell (default: sh)
	SuPath          string `yaml:"su_path"`           // escalation front-end (default: su)
	WaitTimeout     string `yaml:"wait_timeout"`      // duration string (default: 30s)
	OutputBufferMax int    `yaml:"output_buffer_max"` // bytes per command (default: 262144)
}

// PermissionConfig holds elevation probe settings.
type PermissionConfig struct {
	TTL           string `yaml:"ttl"`            // cache lifetime (default: 3m)
	ProbeInterval string `yaml:"probe_interval"` // min spacing between probes (default: 1s)
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // stdout or noop
}

// Config is the top-level application configuration.
type Config struct {
	Shell      ShellConfig      `yaml:"shell"`
	Permission PermissionConfig `yaml:"permission"`
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Shell: ShellConfig{
			ShellPath:       "sh",
			SuPath:          "su",
			WaitTimeout:     "30s",
			OutputBufferMax: 256 * 1024,
		},
		Permission: PermissionConfig{
			TTL:           "3m",
			ProbeInterval: "1s",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads the configuration file at path, falling back to defaults for
// absent fields, then applies environment overrides and validates.
// An empty path yields the defaults (plus overrides).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets ROOTSHELL_* variables override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROOTSHELL_SHELL_PATH"); v != "" {
		cfg.Shell.ShellPath = v
	}
	if v := os.Getenv("ROOTSHELL_SU_PATH"); v != "" {
		cfg.Shell.SuPath = v
	}
	if v := os.Getenv("ROOTSHELL_WAIT_TIMEOUT"); v != "" {
		cfg.Shell.WaitTimeout = v
	}
	if v := os.Getenv("ROOTSHELL_OUTPUT_BUFFER_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Shell.OutputBufferMax = n
		}
	}
	if v := os.Getenv("ROOTSHELL_PERMISSION_TTL"); v != "" {
		cfg.Permission.TTL = v
	}
	if v := os.Getenv("ROOTSHELL_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("ROOTSHELL_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("ROOTSHELL_LOG_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("ROOTSHELL_TRACER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracer.Enabled = b
		}
	}
}

// Validate checks that every duration parses and enumerations hold known
// values.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"shell.wait_timeout":        c.Shell.WaitTimeout,
		"permission.ttl":            c.Permission.TTL,
		"permission.probe_interval": c.Permission.ProbeInterval,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	switch c.Logger.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: logger.format: unknown format %q", c.Logger.Format)
	}
	switch c.Tracer.Exporter {
	case "", "stdout", "noop":
	default:
		return fmt.Errorf("config: tracer.exporter: unknown exporter %q", c.Tracer.Exporter)
	}
	return nil
}

// Timeout returns the parsed shell wait timeout.
func (c *ShellConfig) Timeout() time.Duration {
	return parseDuration(c.WaitTimeout, 30*time.Second)
}

// TTLDuration returns the parsed permission cache TTL.
func (c *PermissionConfig) TTLDuration() time.Duration {
	return parseDuration(c.TTL, 3*time.Minute)
}

// ProbeIntervalDuration returns the parsed probe spacing.
func (c *PermissionConfig) ProbeIntervalDuration() time.Duration {
	return parseDuration(c.ProbeInterval, time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
