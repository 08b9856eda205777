// Package mysql implements the MySQL / MariaDB driver on go-sql-driver/mysql.
package mysql

import (
	"context"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	"github.com/ekaya-inc/querypad/pkg/adapters/datasource/sqlrows"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// DriverID is the ConnectionConfig.Driver value selecting MySQL.
const DriverID = "mysql"

// sqlDriverName is the database/sql name go-sql-driver/mysql registers under.
const sqlDriverName = "mysql"

const schemaQuery = `
SELECT
  c.TABLE_SCHEMA AS table_schema,
  c.TABLE_NAME AS table_name,
  c.COLUMN_NAME AS column_name,
  c.DATA_TYPE AS data_type,
  t.TABLE_TYPE AS table_type
FROM INFORMATION_SCHEMA.COLUMNS c
JOIN INFORMATION_SCHEMA.TABLES t
  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
WHERE c.TABLE_SCHEMA NOT IN ('mysql', 'performance_schema', 'information_schema', 'sys')
ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`

// Driver is the MySQL driver. It supports persistent sessions.
type Driver struct{}

var _ datasource.PersistentDriver = (*Driver)(nil)

func (d *Driver) ID() string   { return DriverID }
func (d *Driver) Name() string { return "MySQL" }

func (d *Driver) Fields() []datasource.FieldSpec {
	return []datasource.FieldSpec{
		{Key: "host", FormType: datasource.FormText, Label: "Host/Server/IP Address"},
		{Key: "port", FormType: datasource.FormText, Label: "Port (optional)"},
		{Key: "database", FormType: datasource.FormText, Label: "Database"},
		{Key: "user", FormType: datasource.FormText, Label: "Database Username"},
		{Key: "password", FormType: datasource.FormPassword, Label: "Database Password"},
		{Key: "tls", FormType: datasource.FormText, Label: "TLS (true, skip-verify, preferred)"},
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
	conn.MaxRows = 0
	result, err := d.RunQuery(ctx, schemaQuery, conn)
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

func (d *Driver) NewClient(conn models.ConnectionConfig) datasource.Client {
	cfg, err := FromConnection(conn)
	if err != nil {
		return datasource.FailingClient(err)
	}
	return sqlrows.NewClient(sqlDriverName, cfg.DSN(), cfg.MaxRows)
}
