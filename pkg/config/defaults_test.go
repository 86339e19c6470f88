package config

import (
	"testing"
	"time"

	"github.com/blulok/blulok-cloud/internal/logger"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_NormalizesLogLevel(t *testing.T) {
	cfg := &Config{Logging: logger.Config{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_Environment(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %q", cfg.Environment)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Access(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Access.RoutePassTTLHours != 24 {
		t.Errorf("Expected default route pass TTL 24h, got %d", cfg.Access.RoutePassTTLHours)
	}
	if cfg.Access.FallbackIATSkewSeconds != 10 {
		t.Errorf("Expected default fallback skew 10s, got %d", cfg.Access.FallbackIATSkewSeconds)
	}
	if cfg.Access.PruneIntervalSeconds != 300 {
		t.Errorf("Expected default prune interval 300s, got %d", cfg.Access.PruneIntervalSeconds)
	}

	// Key material never defaults; it comes from keygen.
	if cfg.Access.OperatorPrivateKeyB64 != "" || cfg.Access.OperatorPublicKeyB64 != "" {
		t.Error("Expected no default operator keys")
	}
}

func TestApplyDefaults_AccessHelpers(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Access.RoutePassTTL() != 24*time.Hour {
		t.Errorf("RoutePassTTL = %v, want 24h", cfg.Access.RoutePassTTL())
	}
	if cfg.Access.FallbackSkew() != 10*time.Second {
		t.Errorf("FallbackSkew = %v, want 10s", cfg.Access.FallbackSkew())
	}
	if cfg.Access.PruneInterval() != 5*time.Minute {
		t.Errorf("PruneInterval = %v, want 5m", cfg.Access.PruneInterval())
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout 10s, got %v", cfg.API.ReadTimeout)
	}
	if cfg.API.WriteTimeout != 10*time.Second {
		t.Errorf("Expected default write timeout 10s, got %v", cfg.API.WriteTimeout)
	}
	if cfg.API.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.API.IdleTimeout)
	}
}

func TestApplyDefaults_MetricsOptIn(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 0 {
		t.Errorf("Expected no metrics port while disabled, got %d", cfg.Metrics.Port)
	}

	cfg = &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090 when enabled, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Logging: logger.Config{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/blulok.log",
		},
		ShutdownTimeout: 60 * time.Second,
		Access: AccessConfig{
			RoutePassTTLHours:      4,
			FallbackIATSkewSeconds: 30,
			PruneIntervalSeconds:   60,
		},
	}

	ApplyDefaults(cfg)

	if cfg.Environment != "production" {
		t.Errorf("Expected explicit environment to be preserved, got %q", cfg.Environment)
	}
	if cfg.Logging.Level != "DEBUG" || cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit logging config to be preserved, got %+v", cfg.Logging)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Access.RoutePassTTLHours != 4 {
		t.Errorf("Expected explicit TTL 4h to be preserved, got %d", cfg.Access.RoutePassTTLHours)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}
