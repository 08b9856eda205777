// Package sqlite implements the SQLite driver on modernc.org/sqlite.
package sqlite

import (
	"context"

	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	"github.com/ekaya-inc/querypad/pkg/adapters/datasource/sqlrows"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// DriverID is the ConnectionConfig.Driver value selecting SQLite.
const DriverID = "sqlite"

// sqlDriverName is the database/sql name modernc.org/sqlite registers under.
const sqlDriverName = "sqlite"

const schemaQuery = `
SELECT
  'main' AS table_schema,
  m.name AS table_name,
  p.name AS column_name,
  p.type AS data_type,
  CASE m.type WHEN 'view' THEN 'VIEW' ELSE 'BASE TABLE' END AS table_type
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type IN ('table', 'view')
  AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, p.cid`

// Driver is the SQLite driver. It supports persistent sessions.
type Driver struct{}

var _ datasource.PersistentDriver = (*Driver)(nil)

func (d *Driver) ID() string   { return DriverID }
func (d *Driver) Name() string { return "SQLite" }

func (d *Driver) Fields() []datasource.FieldSpec {
	return []datasource.FieldSpec{
		{Key: "filename", FormType: datasource.FormText, Label: "Filename / path"},
		{Key: "read_only", FormType: datasource.FormCheckbox, Label: "Open read-only"},
	}
}

func (d *Driver) ValidateConnection(conn models.ConnectionConfig) (models.ConnectionConfig, error) {
	if _, err := FromConnection(conn); err != nil {
		return conn, err
	}
	return conn, nil
}

func (d *Driver) TestConnection(ctx context.Context, conn models.ConnectionConfig) error {
	cfg, err := FromConnection(conn)
	if err != nil {
		return err
	}
	return sqlrows.Ping(ctx, sqlDriverName, cfg.DSN())
}

func (d *Driver) GetSchema(ctx context.Context, conn models.ConnectionConfig) (models.SchemaTree, error) {
	cfg, err := FromConnection(conn)
	if err != nil {
		return nil, err
	}
	result, err := sqlrows.RunOnce(ctx, sqlDriverName, cfg.DSN(), schemaQuery, 0)
	if err != nil {
		return nil, err
	}
	return datasource.FormatSchemaRows(result.Rows), nil
}

func (d *Driver) RunQuery(ctx context.Context, query string, conn models.ConnectionConfig) (*datasource.RawResult, error) {
	cfg, err := FromConnection(conn)
	if err != nil {
		return nil, err
	}
	return sqlrows.RunOnce(ctx, sqlDriverName, cfg.DSN(), query, cfg.MaxRows)
}

// NewClient returns a session pinned to one SQLite connection.
// An invalid configuration surfaces from Connect.
func (d *Driver) NewClient(conn models.ConnectionConfig) datasource.Client {
	cfg, err := FromConnection(conn)
	if err != nil {
		return datasource.FailingClient(err)
	}
	return sqlrows.NewClient(sqlDriverName, cfg.DSN(), cfg.MaxRows)
}
