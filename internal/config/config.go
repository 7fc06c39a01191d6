// Package config handles ovdmap configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/ovdmap/internal/lang"
)

// FileName is the configuration file looked up at the scan root.
const FileName = ".ovdmap.yml"

// Output formats.
const (
	FormatTOON = "toon"
	FormatYAML = "yaml"
)

// Config holds all ovdmap settings. Command-line flags override it.
type Config struct {
	MaxFiles    int      `envconfig:"OVDMAP_MAX_FILES" yaml:"max_files"`
	MaxFileSize int64    `envconfig:"OVDMAP_MAX_FILE_SIZE" yaml:"max_file_size"`
	Extensions  []string `envconfig:"OVDMAP_EXTENSIONS" yaml:"extensions"`
	Languages   []string `envconfig:"OVDMAP_LANGUAGES" yaml:"languages"`
	Ignore      []string `envconfig:"OVDMAP_IGNORE" yaml:"ignore"`
	Format      string   `envconfig:"OVDMAP_FORMAT" yaml:"format"`
	Audit       bool     `envconfig:"OVDMAP_AUDIT" yaml:"audit"`
	SkipTests   bool     `envconfig:"OVDMAP_SKIP_TESTS" yaml:"skip_tests"`
	Workers     int      `envconfig:"OVDMAP_WORKERS" yaml:"workers"`

	Log LogConfig `yaml:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"OVDMAP_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"OVDMAP_LOG_FORMAT" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxFiles:    0,
		MaxFileSize: 1 << 20,
		Format:      FormatTOON,
		Workers:     0,
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, a YAML file and OVDMAP_*
// environment variables, in that order. An empty path means FileName under
// root, which may be absent.
func Load(root, path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}
	if err := loadFromFile(cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.MaxFiles < 0 {
		errs = append(errs, "max_files must not be negative")
	}
	if c.MaxFileSize < 0 {
		errs = append(errs, "max_file_size must not be negative")
	}
	if c.Workers < 0 {
		errs = append(errs, "workers must not be negative")
	}

	validFormats := map[string]bool{FormatTOON: true, FormatYAML: true}
	if !validFormats[c.Format] {
		errs = append(errs, fmt.Sprintf("invalid format: %s (must be toon or yaml)", c.Format))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Sprintf("extension %q must start with a dot", ext))
		}
	}

	for _, name := range c.Languages {
		if _, ok := lang.Languages[name]; !ok {
			errs = append(errs, fmt.Sprintf("unknown language %q (must be one of %s)", name, strings.Join(lang.Names(), ", ")))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
