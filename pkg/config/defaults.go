package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blulok/blulok-cloud/pkg/access/store"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyEnvironmentDefaults(cfg)
	applyLoggingDefaults(cfg)
	applyShutdownTimeoutDefaults(cfg)
	cfg.Database.ApplyDefaults()
	applyAccessDefaults(&cfg.Access)
	cfg.API.ApplyDefaults()
	applyMetricsDefaults(&cfg.Metrics)
}

func applyEnvironmentDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyAccessDefaults sets access core defaults. Key material has no
// default: it is generated by `blulok keygen` and configured explicitly.
func applyAccessDefaults(cfg *AccessConfig) {
	if cfg.RoutePassTTLHours == 0 {
		cfg.RoutePassTTLHours = 24
	}
	if cfg.FallbackIATSkewSeconds == 0 {
		cfg.FallbackIATSkewSeconds = 10
	}
	if cfg.PruneIntervalSeconds == 0 {
		cfg.PruneIntervalSeconds = 300
	}
}

// applyMetricsDefaults sets metrics defaults.
// Metrics are opt-in; the port defaults only when enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "blulok")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "blulok")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
