package mysql

import (
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/config"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string // "", "true", "skip-verify", "preferred"
	MaxRows  int
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromConnection creates a Config from a connection definition.
func FromConnection(conn models.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:     conn.String("host"),
		Port:     conn.Int("port", DefaultPort()),
		User:     conn.String("user"),
		Password: conn.String("password"),
		Database: conn.String("database"),
		TLS:      conn.String("tls"),
		MaxRows:  conn.MaxRows,
	}
	if cfg.Host == "" {
		return nil, apperrors.NewValidationError("host is required")
	}
	if cfg.User == "" {
		return nil, apperrors.NewValidationError("user is required")
	}
	return cfg, nil
}

// DSN formats the go-sql-driver/mysql data source name.
// multiStatements lets a query text hold several statements.
func (c *Config) DSN() string {
	mc := gomysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", config.ResolveHostForDocker(c.Host), c.Port)
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.MultiStatements = true
	mc.Timeout = 30 * time.Second
	if c.TLS != "" {
		mc.TLSConfig = c.TLS
	}
	return mc.FormatDSN()
}
