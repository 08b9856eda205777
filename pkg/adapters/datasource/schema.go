package datasource

import (
	"fmt"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// Column aliases every driver's schema query must return.
const (
	colTableSchema = "table_schema"
	colTableName   = "table_name"
	colColumnName  = "column_name"
	colDataType    = "data_type"
	colTableType   = "table_type"
)

// FormatSchemaRows builds a schema tree from rows of a schema introspection query.
// Columns keep the order they appear in rows.
func FormatSchemaRows(rows []map[string]any) models.SchemaTree {
	tree := make(models.SchemaTree)
	for _, row := range rows {
		schemaName := stringValue(row[colTableSchema])
		tableName := stringValue(row[colTableName])
		if tableName == "" {
			continue
		}
		if tree[schemaName] == nil {
			tree[schemaName] = make(map[string][]models.SchemaColumn)
		}
		tree[schemaName][tableName] = append(tree[schemaName][tableName], models.SchemaColumn{
			ColumnName: stringValue(row[colColumnName]),
			DataType:   stringValue(row[colDataType]),
			TableType:  stringValue(row[colTableType]),
		})
	}
	return tree
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}
