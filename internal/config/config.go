// Package config loads server configuration from an optional YAML file with
// PHASEFLOW_* environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the serve command needs.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	DBPath          string        `yaml:"db_path"`
	LogLevel        string        `yaml:"log_level"`
	GinMode         string        `yaml:"gin_mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		DBPath:          "phaseflow.db",
		LogLevel:        "info",
		GinMode:         "release",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides. A missing file at an explicitly given path is an error; an empty
// path skips the file step.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = Default().ShutdownTimeout
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PHASEFLOW_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PHASEFLOW_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PHASEFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PHASEFLOW_GIN_MODE"); v != "" {
		cfg.GinMode = v
	}
}

// SlogLevel maps the configured log level to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
