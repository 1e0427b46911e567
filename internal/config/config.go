// Package config loads the arena, server and rollout settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/dodgesim/internal/core/env"
	"github.com/zeusync/dodgesim/internal/core/observability/log"
	"github.com/zeusync/dodgesim/internal/core/rollout"
	"github.com/zeusync/dodgesim/internal/server"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the whole configuration file. Arena settings sit at the top
// level; server and rollout settings have their own sections.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Env      env.Config     `yaml:",inline"`
	Server   server.Config  `yaml:"server"`
	Rollout  rollout.Config `yaml:"rollout"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Env:      env.DefaultConfig(),
		Server:   server.DefaultServerConfig(),
		Rollout:  rollout.DefaultConfig(),
	}
}

// Level is the parsed LogLevel.
func (c Config) Level() log.Level {
	lvl, _ := log.ParseLevel(c.LogLevel)
	return lvl
}

// Validate checks every section and reports the first problem.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Env.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Rollout.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads and validates the file at path. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML over the defaults. Unknown keys are rejected so that a
// misspelt setting fails loudly instead of silently keeping its default.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
