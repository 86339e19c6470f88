// Package config loads and validates the BluLok server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (BLULOK_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/blulok/blulok-cloud/internal/logger"
	"github.com/blulok/blulok-cloud/pkg/access/store"
	"github.com/blulok/blulok-cloud/pkg/api"
)

// Config represents the BluLok server configuration.
//
// Static configuration covers logging, the control database, the operator
// key material, Route Pass and denylist tunables, and the API/metrics
// servers. Facilities, units, tenants, and devices are dynamic data managed
// through the surrounding product and stored in the database.
type Config struct {
	// Environment selects deployment mode: "development" or "production".
	// Production refuses to start without valid operator keys.
	Environment string `mapstructure:"environment" validate:"omitempty,oneof=development production" yaml:"environment"`

	// Logging controls log output behavior.
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the access core database (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Access configures the access authorization core.
	Access AccessConfig `mapstructure:"access" yaml:"access"`

	// API contains the admin API server configuration.
	API api.Config `mapstructure:"api" yaml:"api"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// AccessConfig carries the operator key material and the access core
// tunables.
type AccessConfig struct {
	// OperatorPrivateKeyB64 is the base64url (unpadded) 32-byte Ed25519
	// seed used to sign Route Passes and gateway commands.
	// Override: BLULOK_ACCESS_OPERATOR_PRIVATE_KEY_B64
	OperatorPrivateKeyB64 string `mapstructure:"operator_private_key_b64" yaml:"operator_private_key_b64"`

	// OperatorPublicKeyB64 is the matching base64url public key.
	OperatorPublicKeyB64 string `mapstructure:"operator_public_key_b64" yaml:"operator_public_key_b64"`

	// RoutePassTTLHours is the Route Pass lifetime. Default: 24.
	RoutePassTTLHours int `mapstructure:"route_pass_ttl_hours" validate:"omitempty,min=1" yaml:"route_pass_ttl_hours"`

	// FallbackIATSkewSeconds bounds fallback token freshness. Default: 10.
	FallbackIATSkewSeconds int `mapstructure:"fallback_iat_skew_seconds" validate:"omitempty,min=1" yaml:"fallback_iat_skew_seconds"`

	// PruneIntervalSeconds is the denylist sweep period. Default: 300.
	PruneIntervalSeconds int `mapstructure:"prune_interval_seconds" validate:"omitempty,min=1" yaml:"prune_interval_seconds"`
}

// RoutePassTTL returns the configured Route Pass lifetime.
func (c *AccessConfig) RoutePassTTL() time.Duration {
	return time.Duration(c.RoutePassTTLHours) * time.Hour
}

// FallbackSkew returns the configured fallback freshness window.
func (c *AccessConfig) FallbackSkew() time.Duration {
	return time.Duration(c.FallbackIATSkewSeconds) * time.Second
}

// PruneInterval returns the configured denylist sweep period.
func (c *AccessConfig) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalSeconds) * time.Second
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and the HTTP server run.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint. Default: 9090.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the file
// is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  blulok init\n\n"+
				"Or specify a custom config file:\n"+
				"  blulok <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  blulok init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
// The file is written 0600: it carries the operator private key.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variables and config file search.
// Environment variables use the BLULOK_ prefix with underscores, e.g.
// BLULOK_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BLULOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s" or "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
