// Package config loads hxstream server settings.
//
// Values start from DefaultConfig, are overlaid by an optional YAML file and
// finally by environment variables:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("hxstream.yaml").
//	    WithEnvPrefix("HXSTREAM").
//	    Load()
//
// Environment keys join the prefix and the env tags of the field path, so
// Cache.Addr is read from HXSTREAM_CACHE_ADDR.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cache drivers.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" env:"SERVER"`
	Render  RenderConfig  `yaml:"render" env:"RENDER"`
	Cache   CacheConfig   `yaml:"cache" env:"CACHE"`
	Log     LogConfig     `yaml:"log" env:"LOG"`
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// RenderConfig configures the engine and its templates.
type RenderConfig struct {
	// Release hides component errors from the page.
	Release       bool          `yaml:"release" env:"RELEASE"`
	TemplatesDir  string        `yaml:"templates_dir" env:"TEMPLATES_DIR"`
	WatchInterval time.Duration `yaml:"watch_interval" env:"WATCH_INTERVAL"`
}

// CacheConfig configures the shared store data cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Driver   string        `yaml:"driver" env:"DRIVER"`
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
	// SigningKey authenticates Redis entries. Sealed entries are encrypted
	// with it as well.
	SigningKey string `yaml:"signing_key" env:"SIGNING_KEY"`
	Sealed     bool   `yaml:"sealed" env:"SEALED"`
}

// LogConfig configures zap.
type LogConfig struct {
	// debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// json or console
	Format string `yaml:"format" env:"FORMAT"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	Path      string `yaml:"path" env:"PATH"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Render: RenderConfig{
			TemplatesDir:  "templates",
			WatchInterval: time.Second,
		},
		Cache: CacheConfig{
			Driver: CacheMemory,
			Addr:   "localhost:6379",
			TTL:    time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "hxstream",
			Path:      "/metrics",
		},
	}
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if c.Render.WatchInterval < 0 {
		errs = append(errs, "render.watch_interval must not be negative")
	}

	switch c.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Enabled && c.Cache.SigningKey == "" {
			errs = append(errs, "cache.signing_key is required for the redis driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not one of memory, redis", c.Cache.Driver))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not one of json, console", c.Log.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}
