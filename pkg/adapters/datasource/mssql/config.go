package mssql

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/config"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// Authentication methods.
const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod is AuthSQL or AuthServicePrincipal.
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
	MaxRows                int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromConnection creates a Config from a connection definition and
// auto-detects the auth method when none is given.
func FromConnection(conn models.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:                   conn.String("host"),
		Port:                   conn.Int("port", DefaultPort()),
		Database:               conn.String("database"),
		AuthMethod:             conn.String("auth_method"),
		Username:               conn.String("user"),
		Password:               conn.String("password"),
		TenantID:               conn.String("tenant_id"),
		ClientID:               conn.String("client_id"),
		ClientSecret:           conn.String("client_secret"),
		Encrypt:                conn.Bool("encrypt", true),
		TrustServerCertificate: conn.Bool("trust_server_certificate", false),
		ConnectionTimeout:      conn.Int("connection_timeout", DefaultConnectionTimeout()),
		MaxRows:                conn.MaxRows,
	}
	if cfg.Username == "" {
		cfg.Username = conn.String("username")
	}

	if cfg.AuthMethod == "" {
		switch {
		case cfg.ClientID != "":
			cfg.AuthMethod = AuthServicePrincipal
		case cfg.Username != "":
			cfg.AuthMethod = AuthSQL
		default:
			return nil, apperrors.NewValidationError("could not auto-detect auth method; no credentials provided")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return apperrors.NewValidationError("host is required")
	}
	if c.Database == "" {
		return apperrors.NewValidationError("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return apperrors.NewValidationError("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			return apperrors.NewValidationError("user is required for SQL authentication")
		}
	case AuthServicePrincipal:
		if c.TenantID == "" {
			return apperrors.NewValidationError("tenant_id is required for service principal")
		}
		if c.ClientID == "" {
			return apperrors.NewValidationError("client_id is required for service principal")
		}
		if c.ClientSecret == "" {
			return apperrors.NewValidationError("client_secret is required for service principal")
		}
	default:
		return apperrors.NewValidationError("invalid auth method: %s (must be sql or service_principal)", c.AuthMethod)
	}

	return nil
}

// driverAndDSN returns the database/sql driver name and DSN for the config.
// Service principal logins need the azuresql driver, which understands fedauth.
func driverAndDSN(cfg *Config) (string, string) {
	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("encrypt", fmt.Sprintf("%t", cfg.Encrypt))
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}

	host := config.ResolveHostForDocker(cfg.Host)

	if cfg.AuthMethod == AuthServicePrincipal {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID)
		query.Add("password", cfg.ClientSecret)
		query.Add("tenant id", cfg.TenantID)
		return "azuresql", fmt.Sprintf("sqlserver://%s:%d?%s", host, cfg.Port, query.Encode())
	}

	return "sqlserver", fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		query.Encode(),
	)
}
