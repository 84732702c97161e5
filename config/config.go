// Package config handles grue.toml interpreter preferences.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a grue.toml preferences file.
type Config struct {
	Interface Interface `toml:"interface"`
	Game      Game      `toml:"game"`
	Log       Log       `toml:"log"`

	// Path is the file the configuration was loaded from (set at load time).
	Path string `toml:"-"`
}

// Interface configures terminal presentation.
type Interface struct {
	Plain     bool `toml:"plain"`
	Highlight bool `toml:"highlight"`
}

// Game configures per-session game behavior.
type Game struct {
	Seed    int64  `toml:"seed"`
	SaveDir string `toml:"save-dir"`
}

// Log configures diagnostic output.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Interface: Interface{Highlight: true},
	}
}

// Load parses a grue.toml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// LoadDefault looks for grue.toml in the user config directory, then the
// working directory. A missing file is not an error: the defaults are
// returned.
func LoadDefault() (*Config, error) {
	var candidates []string
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "grue", "grue.toml"))
	}
	candidates = append(candidates, "grue.toml")

	for _, path := range candidates {
		c, err := Load(path)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return Default(), nil
}
