// Package config holds the reporter's validated configuration surface
// (spec.md §6.3): defaults, YAML loading, and validation. Construction-time
// errors here are the one propagating kind named in spec.md §7 — every
// other package swallows its own.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hansjm10/go-llm-reporter/internal/dedup"
)

// DeduplicateLogs mirrors spec.md §6.3's deduplicateLogs block. It is
// accepted in YAML either as a bare bool (shorthand for {enabled: bool})
// or as the full object — see UnmarshalYAML.
type DeduplicateLogs struct {
	Enabled             bool   `yaml:"enabled"`
	MaxCacheEntries     int    `yaml:"maxCacheEntries"`
	IncludeSources      bool   `yaml:"includeSources"`
	NormalizeWhitespace bool   `yaml:"normalizeWhitespace"`
	StripTimestamps     bool   `yaml:"stripTimestamps"`
	StripAnsiCodes      bool   `yaml:"stripAnsiCodes"`
	Scope               string `yaml:"scope"`
}

// UnmarshalYAML accepts either `deduplicateLogs: true` or a full mapping,
// matching spec.md §6.3's `bool | {...}` shorthand.
func (d *DeduplicateLogs) UnmarshalYAML(value *yaml.Node) error {
	var asBool bool
	if err := value.Decode(&asBool); err == nil {
		*d = DeduplicateLogs{Enabled: asBool}
		return nil
	}
	type plain DeduplicateLogs
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = DeduplicateLogs(p)
	return nil
}

// Stdio mirrors spec.md §6.3's stdio block.
type Stdio struct {
	SuppressStdout   bool     `yaml:"suppressStdout"`
	SuppressStderr   bool     `yaml:"suppressStderr"`
	FilterPattern    []string `yaml:"filterPattern"`
	FrameworkPresets []string `yaml:"frameworkPresets"`
	RedirectToStderr bool     `yaml:"redirectToStderr"`
}

// Truncation mirrors spec.md §6.3's truncation block.
type Truncation struct {
	Enabled             bool `yaml:"enabled"`
	MaxTokens           int  `yaml:"maxTokens"`
	EnableLateTruncation bool `yaml:"enableLateTruncation"`
}

// EnvironmentMetadata mirrors spec.md §6.3's environmentMetadata block.
type EnvironmentMetadata struct {
	Enabled                bool `yaml:"enabled"`
	IncludeVitest          bool `yaml:"includeVitest"`
	IncludePackageManager  bool `yaml:"includePackageManager"`
	IncludeCi              bool `yaml:"includeCi"`
	IncludeNodeRuntime     bool `yaml:"includeNodeRuntime"`
	IncludeOsVersion       bool `yaml:"includeOsVersion"`
}

// Config is the full validated configuration surface of spec.md §6.3.
type Config struct {
	OutputFile              string              `yaml:"outputFile"`
	CaptureConsoleOnFailure bool                `yaml:"captureConsoleOnFailure"`
	MaxConsoleBytes         int                 `yaml:"maxConsoleBytes"`
	MaxConsoleLines         int                 `yaml:"maxConsoleLines"`
	IncludeDebugOutput      bool                `yaml:"includeDebugOutput"`
	GracePeriodMs           int                 `yaml:"gracePeriodMs"`
	DeduplicateLogs         DeduplicateLogs     `yaml:"deduplicateLogs"`
	Stdio                   Stdio               `yaml:"stdio"`
	Truncation              Truncation          `yaml:"truncation"`
	EnvironmentMetadata     EnvironmentMetadata `yaml:"environmentMetadata"`
}

// Defaults returns the documented defaults for every recognized option.
func Defaults() Config {
	return Config{
		CaptureConsoleOnFailure: true,
		MaxConsoleBytes:         50000,
		MaxConsoleLines:         100,
		IncludeDebugOutput:      false,
		GracePeriodMs:           100,
		DeduplicateLogs: DeduplicateLogs{
			Enabled:         true,
			MaxCacheEntries: dedup.DefaultMaxEntries,
			Scope:           string(dedup.ScopePerTest),
		},
		Truncation: Truncation{
			Enabled:              true,
			EnableLateTruncation: true,
		},
		EnvironmentMetadata: EnvironmentMetadata{
			Enabled:            true,
			IncludeCi:          true,
			IncludeNodeRuntime: true,
			IncludeOsVersion:   true,
		},
	}
}

// Load reads and merges a YAML config file at path over Defaults(). A
// missing file is not an error — the defaults are returned as-is, mirroring
// the teacher's own "no config.yaml found, using defaults" loader path.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded Config for internally-inconsistent values,
// returning a *ConfigError on the first one found.
func (c *Config) Validate() error {
	if c.MaxConsoleBytes < 0 {
		return &ConfigError{Field: "maxConsoleBytes", Reason: "must be non-negative"}
	}
	if c.MaxConsoleLines < 0 {
		return &ConfigError{Field: "maxConsoleLines", Reason: "must be non-negative"}
	}
	if c.GracePeriodMs < 0 {
		return &ConfigError{Field: "gracePeriodMs", Reason: "must be non-negative"}
	}
	if c.DeduplicateLogs.MaxCacheEntries < 0 {
		return &ConfigError{Field: "deduplicateLogs.maxCacheEntries", Reason: "must be non-negative"}
	}
	switch c.DeduplicateLogs.Scope {
	case "", string(dedup.ScopeGlobal), string(dedup.ScopePerTest):
	default:
		return &ConfigError{Field: "deduplicateLogs.scope", Reason: fmt.Sprintf("unrecognized value %q", c.DeduplicateLogs.Scope)}
	}
	if c.Truncation.MaxTokens < 0 {
		return &ConfigError{Field: "truncation.maxTokens", Reason: "must be non-negative"}
	}
	return nil
}

// DedupScope returns the configured dedup scope as a dedup.Scope, falling
// back to the per-test default for an empty value.
func (c *Config) DedupScope() dedup.Scope {
	if c.DeduplicateLogs.Scope == string(dedup.ScopeGlobal) {
		return dedup.ScopeGlobal
	}
	return dedup.ScopePerTest
}
