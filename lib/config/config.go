// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "MATRIX_CONSOLE_CONFIG"

// Environment selects which override section applies.
type Environment string

const (
	// Development is for test homeservers and local experiments.
	Development Environment = "development"
	// Staging is for shared pre-production homeservers.
	Staging Environment = "staging"
	// Production is for live homeservers.
	Production Environment = "production"
)

// Config is the console's configuration.
type Config struct {
	// Environment identifies the deployment the console talks to.
	Environment Environment `yaml:"environment"`

	// IdentitiesFile is the YAML file holding named identities.
	IdentitiesFile string `yaml:"identities_file"`

	// DefaultIdentity is used when a command does not name one.
	DefaultIdentity string `yaml:"default_identity"`

	// DryRun makes every request short-circuit before the network.
	DryRun bool `yaml:"dry_run"`

	// RequestTimeout bounds each request. Zero means no timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ConfirmTimeout bounds the wait for an operator's answer before a
	// destructive call. An expired wait counts as declined.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`

	// LogLevel is the slog level: debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// NetworkLog configures the in-memory request log.
	NetworkLog NetworkLogConfig `yaml:"network_log"`

	// Bulk configures bulk action pacing.
	Bulk BulkConfig `yaml:"bulk"`

	// Per-environment overrides, applied after the base values.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Nil pointers leave the base value alone.
type ConfigOverrides struct {
	DefaultIdentity *string           `yaml:"default_identity,omitempty"`
	DryRun          *bool             `yaml:"dry_run,omitempty"`
	RequestTimeout  *time.Duration    `yaml:"request_timeout,omitempty"`
	ConfirmTimeout  *time.Duration    `yaml:"confirm_timeout,omitempty"`
	LogLevel        *string           `yaml:"log_level,omitempty"`
	NetworkLog      *NetworkLogConfig `yaml:"network_log,omitempty"`
	Bulk            *BulkConfig       `yaml:"bulk,omitempty"`
}

// NetworkLogConfig configures the network log.
type NetworkLogConfig struct {
	// Show prints the log after each command.
	Show bool `yaml:"show"`

	// MaxRecords bounds the log. Default: 500.
	MaxRecords int `yaml:"max_records"`

	// Export, when set, saves a snapshot after each command. The file
	// suffix selects the format (.json, .cbor, optionally .zst).
	Export string `yaml:"export"`
}

// BulkConfig paces bulk actions.
type BulkConfig struct {
	// RatePerSecond limits items per second. Zero means unpaced.
	RatePerSecond float64 `yaml:"rate_per_second"`

	// Burst is the number of items that may run back to back before
	// pacing applies. Default: 1.
	Burst int `yaml:"burst"`
}

// Default returns the base configuration that a file is loaded over.
func Default() *Config {
	return &Config{
		Environment:    Development,
		IdentitiesFile: "${HOME}/.config/matrix-console/identities.yaml",
		ConfirmTimeout: 5 * time.Minute,
		LogLevel:       "info",
		NetworkLog: NetworkLogConfig{
			MaxRecords: 500,
		},
		Bulk: BulkConfig{
			Burst: 1,
		},
	}
}

// Load loads configuration from the file named by MATRIX_CONSOLE_CONFIG.
// There are no fallbacks: if the variable is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your console config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over Default, applies the
// section for the configured environment, and expands ${VAR} patterns
// in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables(filepath.Dir(path))
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Live homeservers get paced bulk actions unless configured.
		if overrides == nil && c.Bulk.RatePerSecond == 0 {
			overrides = &ConfigOverrides{Bulk: &BulkConfig{RatePerSecond: 2}}
		}
	}
	if overrides == nil {
		return
	}

	if overrides.DefaultIdentity != nil {
		c.DefaultIdentity = *overrides.DefaultIdentity
	}
	if overrides.DryRun != nil {
		c.DryRun = *overrides.DryRun
	}
	if overrides.RequestTimeout != nil {
		c.RequestTimeout = *overrides.RequestTimeout
	}
	if overrides.ConfirmTimeout != nil {
		c.ConfirmTimeout = *overrides.ConfirmTimeout
	}
	if overrides.LogLevel != nil {
		c.LogLevel = *overrides.LogLevel
	}
	if overrides.NetworkLog != nil {
		// Show is a bool, so it is always applied from an override
		// section that is present.
		c.NetworkLog.Show = overrides.NetworkLog.Show
		if overrides.NetworkLog.MaxRecords != 0 {
			c.NetworkLog.MaxRecords = overrides.NetworkLog.MaxRecords
		}
		if overrides.NetworkLog.Export != "" {
			c.NetworkLog.Export = overrides.NetworkLog.Export
		}
	}
	if overrides.Bulk != nil {
		if overrides.Bulk.RatePerSecond != 0 {
			c.Bulk.RatePerSecond = overrides.Bulk.RatePerSecond
		}
		if overrides.Bulk.Burst != 0 {
			c.Bulk.Burst = overrides.Bulk.Burst
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
// ${CONFIG_DIR} is the directory holding the config file.
func (c *Config) expandVariables(configDir string) {
	vars := map[string]string{
		"CONFIG_DIR": configDir,
		"HOME":       os.Getenv("HOME"),
	}
	c.IdentitiesFile = expandVars(c.IdentitiesFile, vars)
	c.NetworkLog.Export = expandVars(c.NetworkLog.Export, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, checking vars
// before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.IdentitiesFile == "" {
		errs = append(errs, errors.New("identities_file is required"))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("request_timeout must not be negative"))
	}
	if c.ConfirmTimeout < 0 {
		errs = append(errs, errors.New("confirm_timeout must not be negative"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel))
	}
	if c.NetworkLog.MaxRecords <= 0 {
		errs = append(errs, errors.New("network_log.max_records must be positive"))
	}
	if c.Bulk.RatePerSecond < 0 {
		errs = append(errs, errors.New("bulk.rate_per_second must not be negative"))
	}
	if c.Bulk.Burst < 1 {
		errs = append(errs, errors.New("bulk.burst must be at least 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
