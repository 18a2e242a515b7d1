package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendLRU    = "lru"
	CacheBackendRedis  = "redis"
)

// Audit sink names
const (
	AuditSinkLog      = "log"
	AuditSinkPostgres = "postgres"
)

// Data source modes
const (
	DataSourceMock   = "mock"
	DataSourceRemote = "remote"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Cached request gateway configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Upstream data source configuration
	DataSource DataSourceConfig `mapstructure:"data_source"`

	// Redis configuration
	Redis RedisConfig `mapstructure:"redis"`

	// Database configuration, used by the postgres audit sink
	Database DatabaseConfig `mapstructure:"database"`

	// Audit configuration
	Audit AuditConfig `mapstructure:"audit"`

	// JWT configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`

	// Tracing configuration
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// CacheConfig holds cached request gateway configuration
type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	MaxEntries int    `mapstructure:"max_entries"`
	KeyPrefix  string `mapstructure:"key_prefix"`

	// EncryptionKey seals entries written to redis; empty stores plaintext
	EncryptionKey string `mapstructure:"encryption_key"`
}

// TTL returns the freshness window as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// DataSourceConfig selects where cache misses are fetched from
type DataSourceConfig struct {
	Mode           string `mapstructure:"mode"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// AuditConfig selects the audit sinks HIPAA checks are written to
type AuditConfig struct {
	Sinks []string `mapstructure:"sinks"`
}

// HasSink reports whether name is among the configured sinks
func (a AuditConfig) HasSink(name string) bool {
	for _, sink := range a.Sinks {
		if sink == name {
			return true
		}
	}
	return false
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	AccessTokenTTL int    `mapstructure:"access_token_ttl"`
	Issuer         string `mapstructure:"issuer"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// TracingConfig holds OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Endpoint     string  `mapstructure:"endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	Environment  string  `mapstructure:"environment"`
}

// Load loads configuration from the default search paths and environment variables
func Load() (*Config, error) {
	return LoadFrom(".", "./config", "/etc/clinic-portal")
}

// LoadFrom loads configuration searching the given directories for config.yaml
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)

	// Cache defaults
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.ttl_seconds", 300) // 5 minutes
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("cache.key_prefix", "portal:cache:")
	v.SetDefault("cache.encryption_key", "")

	// Data source defaults
	v.SetDefault("data_source.mode", DataSourceMock)
	v.SetDefault("data_source.timeout_seconds", 10)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "clinic_portal")
	v.SetDefault("database.user", "portal")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 300)

	// Audit defaults
	v.SetDefault("audit.sinks", []string{AuditSinkLog})

	// JWT defaults
	v.SetDefault("jwt.access_token_ttl", 3600) // 1 hour
	v.SetDefault("jwt.issuer", "clinic-portal")

	// Rate limiting defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst_size", 40)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.health_path", "/health")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sampling_rate", 1.0)
	v.SetDefault("tracing.environment", "development")

	// Logging defaults
	v.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with conventional environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if jwtSecret := os.Getenv("JWT_SECRET_KEY"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
// MinJWTSecretLength is the shortest accepted HS256 signing secret
const MinJWTSecretLength = 32

var placeholderSecrets = []string{"change-me", "changeme", "secret", "your-secret-key"}

func validate(config *Config) error {
	if config.JWT.SecretKey == "" {
		return fmt.Errorf("JWT secret key is required")
	}
	if slices.Contains(placeholderSecrets, strings.ToLower(config.JWT.SecretKey)) {
		return fmt.Errorf("JWT secret key is a placeholder value; set JWT_SECRET_KEY")
	}
	if len(config.JWT.SecretKey) < MinJWTSecretLength {
		return fmt.Errorf("JWT secret key must be at least %d bytes", MinJWTSecretLength)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	case CacheBackendLRU:
		if config.Cache.MaxEntries <= 0 {
			return fmt.Errorf("cache.max_entries must be positive for the lru backend")
		}
	default:
		return fmt.Errorf("unknown cache backend: %q", config.Cache.Backend)
	}

	if config.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive")
	}

	switch config.DataSource.Mode {
	case DataSourceMock:
	case DataSourceRemote:
		if config.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown data source mode: %q", config.DataSource.Mode)
	}

	for _, sink := range config.Audit.Sinks {
		switch sink {
		case AuditSinkLog:
		case AuditSinkPostgres:
			if config.Database.Password == "" {
				return fmt.Errorf("database password is required for the postgres audit sink")
			}
		default:
			return fmt.Errorf("unknown audit sink: %q", sink)
		}
	}

	return nil
}
