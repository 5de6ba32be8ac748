// Package config loads the kaneboard daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kaneboard/kaneboard/internal/health"
	"github.com/kaneboard/kaneboard/internal/notify"
)

// Config holds daemon settings.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// Env selects log format and defaults: "prod" or anything else.
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	Database DatabaseConfig `yaml:"database"`
	Health   HealthConfig   `yaml:"health"`
	Notify   *notify.Config `yaml:"notify"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// Path is the SQLite file.
	Path string `yaml:"path"`
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn"`
}

// HealthConfig tunes health report caching.
type HealthConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:7466",
		Env:      "dev",
		LogLevel: "info",
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   defaultDBPath(),
		},
		Health: HealthConfig{CacheTTL: health.DefaultTTL},
		Notify: notify.DefaultConfig(),
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "kaneboard.db"
	}
	return filepath.Join(home, ".kaneboard", "kaneboard.db")
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromHome loads ~/.kaneboard/config.yaml.
func LoadFromHome() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return Load(filepath.Join(home, ".kaneboard", "config.yaml"))
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"KANEBOARD_LISTEN":    &c.Listen,
		"KANEBOARD_DB_DRIVER": &c.Database.Driver,
		"KANEBOARD_DB_PATH":   &c.Database.Path,
		"KANEBOARD_DB_DSN":    &c.Database.DSN,
		"KANEBOARD_ENV":       &c.Env,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen must be set")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database driver %q, must be: sqlite or postgres", c.Database.Driver)
	}
	if c.Health.CacheTTL < 0 {
		return fmt.Errorf("health.cache_ttl must not be negative")
	}
	if c.Notify == nil {
		c.Notify = notify.DefaultConfig()
	}
	if c.Notify.Workers < 1 {
		return fmt.Errorf("notify.workers must be at least 1")
	}
	if c.Notify.QueueSize < 1 {
		return fmt.Errorf("notify.queue_size must be at least 1")
	}
	return nil
}
