// Package config loads the optional user configuration file.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the user-level settings read from the config file.
// Zero values fall back to sensible defaults everywhere they are used.
type Config struct {
	// Editor is the command used for the external-editor staging surface,
	// e.g. "vim" or "code --wait". Empty means $EDITOR.
	Editor string `yaml:"editor"`
	// UniquifyOnCollision appends _1, _2, ... to a colliding target name
	// instead of rejecting the plan. Off by default.
	UniquifyOnCollision bool `yaml:"uniquify_on_collision"`
	// Log controls structured logging.
	Log LogConfig `yaml:"log"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "renbuf", "config.yaml")
	}
	return ""
}

// Load reads the config file at path. A missing file is not an error;
// defaults are returned instead.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
