package models

import "time"

// SchemaColumn is one column of a table in a schema tree.
type SchemaColumn struct {
	ColumnName string `json:"columnName"`
	DataType   string `json:"dataType"`
	TableType  string `json:"tableType,omitempty"`
}

// SchemaTree maps schema name -> table name -> ordered columns.
type SchemaTree map[string]map[string][]SchemaColumn

// TableCount returns the number of tables across all schemas.
func (t SchemaTree) TableCount() int {
	n := 0
	for _, tables := range t {
		n += len(tables)
	}
	return n
}

// SchemaCacheEntry is a cached schema tree keyed by the schema cache id of a
// rendered connection. ExpiryDate is informational and not enforced on read.
type SchemaCacheEntry struct {
	CacheID    string     `json:"cacheId"`
	Schema     SchemaTree `json:"schema"`
	ExpiryDate time.Time  `json:"expiryDate"`
	CreatedAt  time.Time  `json:"createdAt"`
}
