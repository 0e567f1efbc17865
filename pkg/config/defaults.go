package config

import (
	"strings"
	"time"

	"github.com/johnwbyrd/semihost/pkg/bytesize"
)

// ApplyDefaults fills in zero values with sensible defaults after a
// config file and environment variables have been applied.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyTransportDefaults(&cfg.Transport)
	applyBackendDefaults(&cfg.Backend)
	applyAuditDefaults(&cfg.Audit)
	applyMetricsDefaults(&cfg.Metrics)
	applyAuthDefaults(&cfg.Auth)
	cfg.Policy.ApplyDefaults()
	// cfg.API's own defaults (port, timeouts) are applied idempotently by
	// api.NewServer; nothing in pkg/config needs them before that point.

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if !cfg.Enabled {
		cfg.Insecure = true
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{
			"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines",
		}
	}
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":5656"
	}
	if cfg.ScratchSize == 0 {
		cfg.ScratchSize = 64 * bytesize.KiB
	}
}

func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Kind == "" {
		cfg.Kind = BackendSandbox
	}
	if cfg.Sandbox.Capacity == 0 {
		cfg.Sandbox.Capacity = 256
	}
	if cfg.Sandbox.PolicySetName == "" {
		cfg.Sandbox.PolicySetName = "default"
	}
	if cfg.S3.Capacity == 0 {
		cfg.S3.Capacity = 256
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Dir == "" {
		cfg.Dir = "./data/audit"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "semihostd"
	}
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = 24 * time.Hour
	}
}

// GetDefaultConfig returns a Config with every field set to its default
// value, used when no config file is found.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
