// Package config loads semihostd's configuration: logging, telemetry,
// metrics, the admin API, the device transport, the sandbox/S3 service
// backend, the durable policy store, and the audit journal — in that
// order of precedence, file < environment < flags, mirroring the
// teacher's viper/mapstructure/yaml loading chain.
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

	"github.com/johnwbyrd/semihost/pkg/api"
	"github.com/johnwbyrd/semihost/pkg/bytesize"
	"github.com/johnwbyrd/semihost/pkg/policystore"
)

// Config is semihostd's static configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (SEMIHOST_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and
	// Pyroscope continuous profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Transport configures the TCP listener device instances connect to.
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// Backend selects and configures the host.Backend service capability.
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`

	// Policy configures the durable policy store (pkg/policystore).
	Policy policystore.Config `mapstructure:"policy" yaml:"policy"`

	// Audit configures the append-only audit journal (internal/audit).
	Audit AuditConfig `mapstructure:"audit" yaml:"audit"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the admin/introspection HTTP API server configuration.
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Auth configures bearer-token signing for the admin API.
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`
}

// TransportConfig configures the TCP listener that accepts device
// connections speaking the RIFF/chunk semihosting protocol.
type TransportConfig struct {
	// ListenAddr is the address to listen on, e.g. ":5656" or
	// "127.0.0.1:5656". Default: ":5656".
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// ScratchSize bounds the largest request/response container a
	// session will process. Accepts a plain byte count or a
	// human-readable size such as "64Ki". Default: 64Ki.
	ScratchSize bytesize.ByteSize `mapstructure:"scratch_size" validate:"omitempty,min=256" yaml:"scratch_size"`
}

// BackendKind selects which host.Backend implementation serves requests.
type BackendKind string

const (
	BackendSandbox BackendKind = "sandbox"
	BackendS3      BackendKind = "s3"
)

// BackendConfig selects and configures the service backend. Exactly one
// of Sandbox/S3 is used, chosen by Kind.
type BackendConfig struct {
	// Kind selects the backend implementation. Default: "sandbox".
	Kind BackendKind `mapstructure:"kind" validate:"required,oneof=sandbox s3" yaml:"kind"`

	Sandbox SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`
	S3      S3Config      `mapstructure:"s3" yaml:"s3"`
}

// SandboxConfig configures internal/sandbox.Backend.
type SandboxConfig struct {
	// Root is the filesystem directory every session is confined to.
	Root string `mapstructure:"root" validate:"required_if=Kind sandbox" yaml:"root"`

	// ReadOnly rejects every write-capable operation.
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// AllowSystem permits the SYSTEM operation to actually exec a shell
	// command. Default: false.
	AllowSystem bool `mapstructure:"allow_system" yaml:"allow_system"`

	// AllowExit permits EXIT/EXIT_EXTENDED to actually terminate the
	// owning process rather than just report the request. Default: false.
	AllowExit bool `mapstructure:"allow_exit" yaml:"allow_exit"`

	// Capacity bounds the handle table size. Default: 256.
	Capacity int `mapstructure:"capacity" validate:"omitempty,min=1" yaml:"capacity"`

	// PolicySetName names the policy set (pkg/policystore) each session
	// draws additional path rules from. Default: "default".
	PolicySetName string `mapstructure:"policy_set" yaml:"policy_set"`
}

// S3Config configures pkg/backend/s3backend.Backend.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Region          string `mapstructure:"region" validate:"required_if=Kind s3" yaml:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`

	Bucket    string `mapstructure:"bucket" validate:"required_if=Kind s3" yaml:"bucket"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	AllowSystem bool `mapstructure:"allow_system" yaml:"allow_system"`
	AllowExit   bool `mapstructure:"allow_exit" yaml:"allow_exit"`
	Capacity    int  `mapstructure:"capacity" validate:"omitempty,min=1" yaml:"capacity"`
}

// AuditConfig configures the append-only audit journal.
type AuditConfig struct {
	// Dir is the badger database directory for the audit log.
	// Default: "./data/audit".
	Dir string `mapstructure:"dir" validate:"required" yaml:"dir"`
}

// AuthConfig configures bearer-token signing for the admin API (pkg/api/auth).
type AuthConfig struct {
	// Secret is the HMAC signing key, at least 32 characters.
	Secret string `mapstructure:"secret" validate:"required,min=32" yaml:"secret"`

	// Issuer is the token issuer claim. Default: "semihostd".
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// TokenDuration is the lifetime of tokens minted by "semihostd policy token".
	// Default: 24h.
	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: "text" or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled. Default: false.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	// Default: "localhost:4317".
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection. Default: true.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0). Default: 1.0.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled. Default: false.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL).
	// Default: "http://localhost:4040".
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint. Default: 9090.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
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
	decodeHook := mapstructure.ComposeDecodeHookFunc(durationDecodeHook(), byteSizeDecodeHook())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the
// configuration file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  semihostd init\n\n"+
				"Or specify a custom config file:\n"+
				"  semihostd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  semihostd init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: config files can carry the auth secret and S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SEMIHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

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

// durationDecodeHook converts human-readable duration strings ("30s",
// "5m") to time.Duration during mapstructure decoding.
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

// byteSizeDecodeHook converts human-readable byte size strings ("64Ki",
// "1Gi") to bytesize.ByteSize during mapstructure decoding.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/semihostd, falling back to
// ~/.config/semihostd or "." if the home directory can't be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "semihostd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "semihostd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for "init").
func GetConfigDir() string {
	return getConfigDir()
}
