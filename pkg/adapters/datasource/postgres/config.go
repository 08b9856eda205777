package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/config"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
	MaxRows  int
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "prefer"
}

// FromConnection creates a Config from a connection definition.
func FromConnection(conn models.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:     conn.String("host"),
		Port:     conn.Int("port", DefaultPort()),
		User:     conn.String("user"),
		Password: conn.String("password"),
		Database: conn.String("database"),
		SSLMode:  conn.String("ssl_mode"),
		MaxRows:  conn.MaxRows,
	}

	if cfg.Host == "" {
		return nil, apperrors.NewValidationError("host is required")
	}
	if cfg.User == "" {
		return nil, apperrors.NewValidationError("user is required")
	}
	if cfg.Database == "" {
		return nil, apperrors.NewValidationError("database is required")
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultSSLMode()
	}

	return cfg, nil
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, # or ?
// do not break URL parsing. localhost is resolved to host.docker.internal when
// running in Docker.
func buildConnectionString(cfg *Config) string {
	host := config.ResolveHostForDocker(cfg.Host)

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		url.QueryEscape(cfg.SSLMode),
	)
}
