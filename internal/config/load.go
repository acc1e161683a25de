package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Load reads the TOML config at path on top of DefaultConfig. A missing
// file is not an error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Decoding into the defaults keeps every key the file does not set.
	// The provider list is cleared first so file entries do not inherit
	// fields from the default entry at the same position.
	defaults := cfg.Provider.OpenAI
	cfg.Provider.OpenAI = nil
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if !md.IsDefined("provider", "openai_compatible") {
		cfg.Provider.OpenAI = defaults
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Provider.Model == "" {
		return errors.New("provider.model must be set")
	}
	if c.Pipeline.MaxIterations < 0 {
		return fmt.Errorf("pipeline.max_iterations must not be negative, got %d", c.Pipeline.MaxIterations)
	}
	switch c.Output.Report {
	case "", "markdown", "json":
	default:
		return fmt.Errorf("output.report must be markdown or json, got %q", c.Output.Report)
	}
	return nil
}
