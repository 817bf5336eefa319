package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eventez/analytics/pkg/export"
	"github.com/eventez/analytics/pkg/observability"
	"github.com/eventez/analytics/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Reports configuration
	Reports ReportsConfig `yaml:"reports"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// ReportsConfig holds report generation and delivery settings
type ReportsConfig struct {
	// CacheSize is the number of entries in the in-process report cache
	CacheSize int `yaml:"cache_size"`

	// DeliveryEndpoint receives generated scheduled reports; empty disables delivery
	DeliveryEndpoint    string `yaml:"delivery_endpoint"`
	DeliveryMaxAttempts int    `yaml:"delivery_max_attempts"`

	// Artifacts holds the S3 destination for exported report files
	Artifacts export.ArtifactConfig `yaml:"artifacts"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging. LogLevelName is the yaml-facing value, LogLevel the parsed one.
	LogLevel     observability.LogLevel `yaml:"-"`
	LogLevelName string                 `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from an optional YAML file pointed to by
// EVENTEZ_CONFIG_FILE, then applies environment variable overrides.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        defaultServerConfig(),
		Storage:       storage.DefaultConfig(),
		Reports:       defaultReportsConfig(),
		Observability: defaultObservabilityConfig(),
	}

	if path := os.Getenv("EVENTEZ_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            "8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		HealthPort:      "9090",
	}
}

func defaultReportsConfig() ReportsConfig {
	return ReportsConfig{
		CacheSize:           512,
		DeliveryMaxAttempts: 3,
		Artifacts: export.ArtifactConfig{
			Region: "us-east-1",
		},
	}
}

func defaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.InfoLevel,
		MetricsEnabled:     true,
		OTelEnabled:        false,
		OTelEndpoint:       "localhost:4317",
		OTelServiceName:    "eventez-analytics",
		OTelServiceVersion: "1.0.0",
		OTelInsecure:       true,
	}
}

// applyFile overlays the YAML file at path onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if cfg.Observability.LogLevelName != "" {
		cfg.Observability.LogLevel = parseLogLevel(cfg.Observability.LogLevelName)
	}
	return nil
}

// applyEnv overlays environment variables onto cfg. Env wins over file.
func applyEnv(cfg *Config) {
	// Server
	cfg.Server.Host = getEnv("EVENTEZ_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("EVENTEZ_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("EVENTEZ_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("EVENTEZ_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("EVENTEZ_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("EVENTEZ_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("EVENTEZ_HEALTH_PORT", cfg.Server.HealthPort)

	// Storage
	cfg.Storage.Driver = getEnv("EVENTEZ_DB_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = getEnv("EVENTEZ_DB_DSN", cfg.Storage.DSN)
	cfg.Storage.MaxConns = getEnvInt("EVENTEZ_DB_MAX_CONNS", cfg.Storage.MaxConns)
	cfg.Storage.MinConns = getEnvInt("EVENTEZ_DB_MIN_CONNS", cfg.Storage.MinConns)
	cfg.Storage.Timeout = getEnvDuration("EVENTEZ_DB_TIMEOUT", cfg.Storage.Timeout)

	// Redis
	cfg.Storage.RedisURL = getEnv("EVENTEZ_REDIS_URL", cfg.Storage.RedisURL)
	cfg.Storage.RedisPassword = getEnv("EVENTEZ_REDIS_PASSWORD", cfg.Storage.RedisPassword)
	cfg.Storage.RedisDB = getEnvInt("EVENTEZ_REDIS_DB", cfg.Storage.RedisDB)
	cfg.Storage.RedisMaxRetries = getEnvInt("EVENTEZ_REDIS_MAX_RETRIES", cfg.Storage.RedisMaxRetries)
	cfg.Storage.RedisPoolSize = getEnvInt("EVENTEZ_REDIS_POOL_SIZE", cfg.Storage.RedisPoolSize)

	// Reports
	cfg.Reports.CacheSize = getEnvInt("EVENTEZ_REPORT_CACHE_SIZE", cfg.Reports.CacheSize)
	cfg.Reports.DeliveryEndpoint = getEnv("EVENTEZ_DELIVERY_ENDPOINT", cfg.Reports.DeliveryEndpoint)
	cfg.Reports.DeliveryMaxAttempts = getEnvInt("EVENTEZ_DELIVERY_MAX_ATTEMPTS", cfg.Reports.DeliveryMaxAttempts)
	cfg.Reports.Artifacts.Bucket = getEnv("EVENTEZ_S3_BUCKET", cfg.Reports.Artifacts.Bucket)
	cfg.Reports.Artifacts.Region = getEnv("EVENTEZ_S3_REGION", cfg.Reports.Artifacts.Region)
	cfg.Reports.Artifacts.Endpoint = getEnv("EVENTEZ_S3_ENDPOINT", cfg.Reports.Artifacts.Endpoint)
	cfg.Reports.Artifacts.AccessKey = getEnv("EVENTEZ_S3_ACCESS_KEY", cfg.Reports.Artifacts.AccessKey)
	cfg.Reports.Artifacts.SecretKey = getEnv("EVENTEZ_S3_SECRET_KEY", cfg.Reports.Artifacts.SecretKey)
	cfg.Reports.Artifacts.UsePathStyle = getEnvBool("EVENTEZ_S3_USE_PATH_STYLE", cfg.Reports.Artifacts.UsePathStyle)

	// Observability
	if level := os.Getenv("EVENTEZ_LOG_LEVEL"); level != "" {
		cfg.Observability.LogLevel = parseLogLevel(level)
	}
	cfg.Observability.MetricsEnabled = getEnvBool("EVENTEZ_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("EVENTEZ_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("EVENTEZ_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("EVENTEZ_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("EVENTEZ_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("EVENTEZ_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config
	switch c.Storage.Driver {
	case "postgres", "sqlite3":
		if c.Storage.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be postgres or sqlite3)", c.Storage.Driver)
	}

	// Validate reports config
	if c.Reports.CacheSize <= 0 {
		return fmt.Errorf("report cache size must be positive")
	}
	if c.Reports.Artifacts.Bucket != "" && c.Reports.Artifacts.Region == "" {
		return fmt.Errorf("S3 region is required when an artifact bucket is configured")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
