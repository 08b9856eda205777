// Package postgres implements the PostgreSQL driver on pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	"github.com/ekaya-inc/querypad/pkg/models"
	"github.com/ekaya-inc/querypad/pkg/retry"
)

// DriverID is the ConnectionConfig.Driver value selecting PostgreSQL.
const DriverID = "postgres"

const schemaQuery = `
SELECT
  c.table_schema,
  c.table_name,
  c.column_name,
  c.data_type,
  t.table_type
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
ORDER BY c.table_schema, c.table_name, c.ordinal_position`

// Driver is the PostgreSQL driver. It supports persistent sessions.
type Driver struct{}

var _ datasource.PersistentDriver = (*Driver)(nil)

func (d *Driver) ID() string   { return DriverID }
func (d *Driver) Name() string { return "PostgreSQL" }

func (d *Driver) Fields() []datasource.FieldSpec {
	return []datasource.FieldSpec{
		{Key: "host", FormType: datasource.FormText, Label: "Host/Server/IP Address"},
		{Key: "port", FormType: datasource.FormText, Label: "Port (optional)"},
		{Key: "database", FormType: datasource.FormText, Label: "Database"},
		{Key: "user", FormType: datasource.FormText, Label: "Database Username"},
		{Key: "password", FormType: datasource.FormPassword, Label: "Database Password"},
		{Key: "ssl_mode", FormType: datasource.FormText, Label: "SSL mode (disable, prefer, require, verify-full)"},
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
	pg, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pg.Close(ctx)

	if err := pg.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
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
	pg, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer pg.Close(ctx)

	rows, err := pg.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, cfg.MaxRows)
}

// NewClient returns a session holding one pgx connection.
func (d *Driver) NewClient(conn models.ConnectionConfig) datasource.Client {
	cfg, err := FromConnection(conn)
	if err != nil {
		return datasource.FailingClient(err)
	}
	return &Client{cfg: cfg}
}

// connect opens a single connection. Statements use the simple protocol so
// a query text may hold several statements, as typed into an editor.
func connect(ctx context.Context, cfg *Config) (*pgx.Conn, error) {
	connConfig, err := pgx.ParseConfig(buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	return retry.DoWithResultIfRetryable(ctx, retry.DefaultConfig(), func() (*pgx.Conn, error) {
		return pgx.ConnectConfig(ctx, connConfig)
	})
}
