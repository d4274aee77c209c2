// Package config loads and validates the tool configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure, read from remod.yaml.
type Config struct {
	Game        GameConfig    `yaml:"game"`
	Definitions []string      `yaml:"definitions"` // directories, increasing precedence
	BundlesDir  string        `yaml:"bundles_dir,omitempty"`
	Logging     LoggingConfig `yaml:"logging"`
}

// GameConfig locates the game installation.
type GameConfig struct {
	Root       string   `yaml:"root"`
	Executable string   `yaml:"executable"`
	Archives   []string `yaml:"archives"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// relativeBundleDir mirrors bundle.RelativeBundleDir without importing it;
// config sits below every other package.
const relativeBundleDir = "reframework/data/usercontent/bundles"

// Load reads, parses, and validates a configuration file, applying
// defaults for optional settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.BundlesDir == "" && c.Game.Root != "" {
		c.BundlesDir = filepath.Join(c.Game.Root, filepath.FromSlash(relativeBundleDir))
	}
	if c.Game.Root != "" {
		if c.Game.Executable != "" && !filepath.IsAbs(c.Game.Executable) {
			c.Game.Executable = filepath.Join(c.Game.Root, c.Game.Executable)
		}
		for i, a := range c.Game.Archives {
			if !filepath.IsAbs(a) {
				c.Game.Archives[i] = filepath.Join(c.Game.Root, a)
			}
		}
	}
}

// Validate checks settings that would otherwise fail far from their
// cause.
func (c *Config) Validate() error {
	if c.Game.Root == "" {
		return fmt.Errorf("config: game.root is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}
	return nil
}
