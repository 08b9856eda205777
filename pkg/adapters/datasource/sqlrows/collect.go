// Package sqlrows holds the database/sql plumbing shared by the sqlite and
// mysql drivers: row collection with truncation, one-shot execution and a
// pinned single-connection client.
package sqlrows

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
)

// Collect drains rows into a RawResult, reading at most maxRows rows.
// When a further row exists, the result is marked Incomplete.
// rows is always closed.
func Collect(rows *sqlx.Rows, maxRows int) (*datasource.RawResult, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &datasource.RawResult{
		Columns: columns,
		Rows:    []map[string]any{},
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Incomplete = true
			break
		}

		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// normalize converts driver byte slices to strings so results serialize as text.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
