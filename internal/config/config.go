// Package config loads the application settings: a YAML file in the user
// config directory, overridable through environment variables. The data
// directory is explicit, passed-in configuration; a store instance is
// constructed with a root path, never read from process-wide state.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	appDir     = "helferlein"
	configFile = "config.yaml"
)

type Config struct {
	// DataDir is the root of the record store. Changing it is an
	// administrative action: construct a new store against the new path.
	DataDir string `yaml:"data_dir" envconfig:"HELFERLEIN_DATA_DIR"`
	// ExportDir is the default destination for export bundles.
	ExportDir string `yaml:"export_dir" envconfig:"HELFERLEIN_EXPORT_DIR"`
	// FileOpenCommand is the command the GUI uses to open attachments.
	FileOpenCommand string `yaml:"file_open_command" envconfig:"HELFERLEIN_FILE_OPEN_COMMAND"`
	Language        string `yaml:"language" envconfig:"HELFERLEIN_LANGUAGE"`
}

// Load reads the config file from the user config directory, creating it with
// defaults on first run, then applies environment overrides.
func Load() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locating user config directory: %w", err)
	}

	return LoadFile(filepath.Join(base, appDir, configFile))
}

// LoadFile loads the config from an explicit path. Environment variables
// override file values.
func LoadFile(path string) (*Config, error) {
	cfg := defaults(filepath.Dir(path))

	data, err := os.ReadFile(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := write(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if cfg.DataDir == "" {
		return nil, errors.New("data_dir must not be empty")
	}

	return cfg, nil
}

func defaults(dir string) *Config {
	return &Config{
		DataDir:   filepath.Join(dir, "data"),
		ExportDir: ".",
		Language:  "en",
	}
}

func write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	return nil
}
