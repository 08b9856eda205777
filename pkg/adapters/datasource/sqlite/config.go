package sqlite

import (
	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// Config contains SQLite-specific connection options.
type Config struct {
	Filename string
	ReadOnly bool
	MaxRows  int
}

// FromConnection extracts a Config from a connection definition.
func FromConnection(conn models.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Filename: conn.String("filename"),
		ReadOnly: conn.Bool("read_only", false),
		MaxRows:  conn.MaxRows,
	}
	if cfg.Filename == "" {
		return nil, apperrors.NewValidationError("filename is required")
	}
	return cfg, nil
}

// DSN returns the modernc.org/sqlite data source name.
func (c *Config) DSN() string {
	dsn := "file:" + c.Filename + "?_pragma=busy_timeout(5000)"
	if c.ReadOnly {
		dsn += "&mode=ro"
	}
	return dsn
}
