// Package config loads server configuration from a YAML file,
// environment variables and defaults, in that order of increasing
// precedence for the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend names accepted by the config.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Autosave AutosaveConfig `mapstructure:"autosave"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	// Backend is "json" or "sqlite".
	Backend string `mapstructure:"backend"`
	// Path is the documents directory for the json backend, or the
	// database file for sqlite.
	Path string `mapstructure:"path"`
	// Watch enables the filesystem watcher on the json backend.
	Watch bool `mapstructure:"watch"`
}

// AutosaveConfig tunes the save coordinator.
type AutosaveConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig controls log output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// JSON switches the handler from text to JSON output.
	JSON bool `mapstructure:"json"`
}

// Load reads configuration from the named file (optional), the
// MODERNBUILDER_* environment and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":8090")
	v.SetDefault("storage.backend", BackendJSON)
	v.SetDefault("storage.path", "data/websites")
	v.SetDefault("storage.watch", true)
	v.SetDefault("autosave.interval", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetEnvPrefix("MODERNBUILDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (expected %s or %s)", c.Storage.Backend, BackendJSON, BackendSQLite)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path cannot be empty")
	}
	if c.Autosave.Interval < 0 {
		return fmt.Errorf("autosave interval cannot be negative")
	}
	return nil
}
