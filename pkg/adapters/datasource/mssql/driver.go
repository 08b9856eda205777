// Package mssql implements the SQL Server driver on go-mssqldb.
// It runs every query one-shot; there is no persistent session support.
package mssql

import (
	"context"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	"github.com/ekaya-inc/querypad/pkg/adapters/datasource/sqlrows"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// DriverID is the ConnectionConfig.Driver value selecting SQL Server.
const DriverID = "sqlserver"

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
WHERE c.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`

// Driver is the SQL Server driver.
type Driver struct{}

var _ datasource.Driver = (*Driver)(nil)

func (d *Driver) ID() string   { return DriverID }
func (d *Driver) Name() string { return "SQL Server" }

func (d *Driver) Fields() []datasource.FieldSpec {
	return []datasource.FieldSpec{
		{Key: "host", FormType: datasource.FormText, Label: "Host/Server/IP Address"},
		{Key: "port", FormType: datasource.FormText, Label: "Port (optional)"},
		{Key: "database", FormType: datasource.FormText, Label: "Database"},
		{Key: "auth_method", FormType: datasource.FormText, Label: "Auth method (sql or service_principal)"},
		{Key: "user", FormType: datasource.FormText, Label: "Database Username"},
		{Key: "password", FormType: datasource.FormPassword, Label: "Database Password"},
		{Key: "tenant_id", FormType: datasource.FormText, Label: "Azure tenant ID"},
		{Key: "client_id", FormType: datasource.FormText, Label: "Azure client ID"},
		{Key: "client_secret", FormType: datasource.FormPassword, Label: "Azure client secret"},
		{Key: "encrypt", FormType: datasource.FormCheckbox, Label: "Encrypt"},
		{Key: "trust_server_certificate", FormType: datasource.FormCheckbox, Label: "Trust server certificate"},
	}
}

func (d *Driver) ValidateConnection(conn models.ConnectionConfig) (models.ConnectionConfig, error) {
	cfg, err := FromConnection(conn)
	if err != nil {
		return conn, err
	}
	out := conn.Clone()
	out.Fields["auth_method"] = cfg.AuthMethod
	return out, nil
}

func (d *Driver) TestConnection(ctx context.Context, conn models.ConnectionConfig) error {
	cfg, err := FromConnection(conn)
	if err != nil {
		return err
	}
	driverName, dsn := driverAndDSN(cfg)
	return sqlrows.Ping(ctx, driverName, dsn)
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
	driverName, dsn := driverAndDSN(cfg)
	return sqlrows.RunOnce(ctx, driverName, dsn, query, cfg.MaxRows)
}
