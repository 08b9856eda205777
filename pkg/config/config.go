package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds all configuration for querypad.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3010"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth    AuthConfig    `yaml:"auth"`
	Clients ClientsConfig `yaml:"clients"`
	Cache   CacheConfig   `yaml:"cache"`
	Redis   RedisConfig   `yaml:"redis"`
	Query   QueryConfig   `yaml:"query"`

	// ConnectionsFile is the YAML file of connection definitions.
	ConnectionsFile string `yaml:"connections_file" env:"CONNECTIONS_FILE" env-default:"connections.yaml"`

	// CredentialsKey decrypts "enc:" values in the connections file.
	// A 32-byte base64 key (openssl rand -base64 32) or a passphrase.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether bearer tokens are validated.
	// Set to false for local development; requests then run as a local admin.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWTSecret is the HS256 signing secret.
	JWTSecret string `yaml:"-" env:"JWT_SECRET"` // Secret - not in YAML
}

// ClientsConfig holds connection client lifecycle settings.
type ClientsConfig struct {
	// KeepAliveTimeout is how long a client lives without a KeepAlive call.
	KeepAliveTimeout time.Duration `yaml:"keep_alive_timeout" env:"CLIENTS_KEEP_ALIVE_TIMEOUT" env-default:"30s"`
	// CleanupInterval is how often each client checks its timeouts.
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CLIENTS_CLEANUP_INTERVAL" env-default:"10s"`
	// InactivityTimeout applies when a connection sets no inactivity_timeout_ms.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout" env:"CLIENTS_INACTIVITY_TIMEOUT" env-default:"1h"`
}

// CacheConfig holds schema and result cache settings.
type CacheConfig struct {
	Dir            string        `yaml:"dir" env:"CACHE_DIR" env-default:"./cache"`
	ResultTTL      time.Duration `yaml:"result_ttl" env:"CACHE_RESULT_TTL" env-default:"8h"`
	SweepInterval  time.Duration `yaml:"sweep_interval" env:"CACHE_SWEEP_INTERVAL" env-default:"5m"`
	SchemaExpiry   time.Duration `yaml:"schema_expiry" env:"CACHE_SCHEMA_EXPIRY" env-default:"24h"`
	Backend        string        `yaml:"backend" env:"CACHE_BACKEND" env-default:"memory"`
	AllowDownloads bool          `yaml:"allow_downloads" env:"CACHE_ALLOW_DOWNLOADS" env-default:"true"`
}

// RedisConfig holds Redis configuration for the redis cache backend.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	// MaxRows applies when a connection sets no max_rows.
	MaxRows int `yaml:"max_rows" env:"QUERY_MAX_ROWS" env-default:"10000"`
}

// Load reads configuration from path with environment variable overrides.
// When path does not exist, configuration comes from the environment alone.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateTLS(); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.Cache.Backend)
	}

	if c.Auth.EnableVerification && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when auth verification is enabled")
	}
	if c.Clients.CleanupInterval <= 0 {
		return fmt.Errorf("clients.cleanup_interval must be positive")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}
