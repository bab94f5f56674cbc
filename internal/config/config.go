// Package config holds nnvts settings loaded from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "nnvts.yaml"

const (
	EnvLogLevel  = "NNVTS_LOG_LEVEL"
	EnvOutputDir = "NNVTS_OUTPUT_DIR"
)

var (
	ErrInvalidFormat  = errors.New("invalid export format")
	ErrInvalidWorkers = errors.New("invalid worker count")
)

type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Export  ExportConfig  `yaml:"export"`
	Check   CheckConfig   `yaml:"check"`
	Emit    EmitConfig    `yaml:"emit"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // console, json
}

type ExportConfig struct {
	Dir    string   `yaml:"dir"`
	Format string   `yaml:"format"` // json, yaml, nnvm
	Groups []string `yaml:"groups,omitempty"`
}

type CheckConfig struct {
	Workers int `yaml:"workers"`
}

type EmitConfig struct {
	Package string `yaml:"package"`
}

// Formats lists the accepted export formats.
var Formats = []string{"json", "yaml", "nnvm"}

func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Encoding: "console"},
		Export:  ExportConfig{Dir: "fixtures", Format: "json"},
		Check:   CheckConfig{Workers: runtime.GOMAXPROCS(0)},
		Emit:    EmitConfig{Package: "fixtures"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	if dir := os.Getenv(EnvOutputDir); dir != "" {
		c.Export.Dir = dir
	}
}

func (c *Config) Validate() error {
	valid := false
	for _, f := range Formats {
		if c.Export.Format == f {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%q (valid: %v): %w", c.Export.Format, Formats, ErrInvalidFormat)
	}
	if c.Check.Workers < 1 {
		return fmt.Errorf("%d: %w", c.Check.Workers, ErrInvalidWorkers)
	}
	return nil
}
