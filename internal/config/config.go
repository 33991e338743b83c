// Package config loads the orchestrator's global configuration and the
// install-request manifests callers submit.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig holds process-wide settings.
type GlobalConfig struct {
	// CacheDir is where downloaded artifacts land.
	CacheDir string `yaml:"cacheDir"`

	// Workers is the number of parallel download workers.
	Workers int `yaml:"workers"`

	// InstallCommand is the shell command used to install a downloaded
	// artifact; "{path}" is replaced with the local file path.
	InstallCommand string `yaml:"installCommand"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns a GlobalConfig with usable defaults.
func Default() *GlobalConfig {
	cfg := &GlobalConfig{
		CacheDir:       "cache",
		Workers:        4,
		InstallCommand: "dpkg -i {path}",
	}
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads a YAML config file and applies defaults for anything
// unset. An empty path returns the defaults.
func Load(path string) (*GlobalConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "cache"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.InstallCommand == "" {
		cfg.InstallCommand = "dpkg -i {path}"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return cfg, nil
}

// ConfigHelpers provides convenient access to global configuration
type ConfigHelpers struct {
	config *GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(config *GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: config}
}

// Workers returns the number of concurrent workers
func (c *ConfigHelpers) Workers() int {
	return c.config.Workers
}

// CacheDir returns the absolute path to the cache directory
func (c *ConfigHelpers) CacheDir() (string, error) {
	return filepath.Abs(c.config.CacheDir)
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// CreateCacheDir ensures the cache directory exists
func (c *ConfigHelpers) CreateCacheDir() error {
	cacheDir, err := c.CacheDir()
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		return os.MkdirAll(cacheDir, 0755)
	}
	return nil
}
