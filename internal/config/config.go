// Package config loads run defaults from a YAML profile and FB2LINGO_*
// environment variables. Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FB2LINGO"

// Settings are run defaults. Zero values mean "not set".
type Settings struct {
	Provider    string   `yaml:"provider,omitempty" envconfig:"PROVIDER"`
	Model       string   `yaml:"model,omitempty" envconfig:"MODEL"`
	BaseURL     string   `yaml:"base_url,omitempty" envconfig:"BASE_URL"`
	Source      string   `yaml:"source,omitempty" envconfig:"SOURCE"`
	Target      string   `yaml:"target,omitempty" envconfig:"TARGET"`
	BatchSize   int      `yaml:"batch_size,omitempty" envconfig:"BATCH_SIZE"`
	Workers     int      `yaml:"workers,omitempty" envconfig:"WORKERS"`
	QPS         int      `yaml:"qps,omitempty" envconfig:"QPS"`
	Placement   string   `yaml:"placement,omitempty" envconfig:"PLACEMENT"`
	Temperature *float64 `yaml:"temperature,omitempty" envconfig:"TEMPERATURE"`
	Glossary    string   `yaml:"glossary,omitempty" envconfig:"GLOSSARY"`
	LogLevel    string   `yaml:"log_level,omitempty" envconfig:"LOG_LEVEL"`
}

// DefaultPath returns the per-user profile location,
// e.g. ~/.config/fb2lingo/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fb2lingo", "config.yaml"), nil
}

// LoadFile parses a YAML profile. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func LoadFile(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return s, nil
}

// LoadEnv reads FB2LINGO_* variables.
func LoadEnv() (Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return s, fmt.Errorf("invalid %s_* environment: %w", EnvPrefix, err)
	}
	return s, nil
}

// LoadDotEnv exports the variables of a dotenv file. Variables already set
// in the process environment are kept.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load merges the profile at path (skipped when path is empty) with the
// environment, environment winning.
func Load(path string) (Settings, error) {
	var file Settings
	if path != "" {
		var err error
		if file, err = LoadFile(path); err != nil {
			return Settings{}, err
		}
	}
	env, err := LoadEnv()
	if err != nil {
		return Settings{}, err
	}
	return Merge(file, env), nil
}

// Merge returns base with every set field of override applied.
func Merge(base, override Settings) Settings {
	out := base
	setString(&out.Provider, override.Provider)
	setString(&out.Model, override.Model)
	setString(&out.BaseURL, override.BaseURL)
	setString(&out.Source, override.Source)
	setString(&out.Target, override.Target)
	setString(&out.Placement, override.Placement)
	setString(&out.Glossary, override.Glossary)
	setString(&out.LogLevel, override.LogLevel)
	setInt(&out.BatchSize, override.BatchSize)
	setInt(&out.Workers, override.Workers)
	setInt(&out.QPS, override.QPS)
	if override.Temperature != nil {
		t := *override.Temperature
		out.Temperature = &t
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
