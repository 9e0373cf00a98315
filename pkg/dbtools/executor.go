package dbtools

import (
	"context"
	"database/sql"
	"time"

	"github.com/dbmcp/pg-mcp-server/pkg/db"
)

const (
	listTablesQuery = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public'`

	tableSchemaQuery = `SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position`
)

// ColumnInfo describes one column of a table schema resource.
type ColumnInfo struct {
	ColumnName string `json:"column_name"`
	DataType   string `json:"data_type"`
}

// Executor runs statements against a Database and serializes result rows
// into JSON-friendly maps. Every call checks a connection out of the pool
// and releases it before returning.
type Executor struct {
	db db.Database
}

// NewExecutor creates an Executor over the given database.
func NewExecutor(database db.Database) *Executor {
	return &Executor{db: database}
}

// Query executes a parameterized statement and returns all result rows.
func (e *Executor) Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := e.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	return rowsToMaps(rows)
}

// Tables lists the table names in the public schema.
func (e *Executor) Tables(ctx context.Context) ([]string, error) {
	rows, err := e.db.Query(ctx, listTablesQuery)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableSchema returns column name and declared type for the named table,
// parameterized by table name. An unknown table yields an empty slice, not
// an error: the catalog query naturally returns zero rows.
func (e *Executor) TableSchema(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := e.db.Query(ctx, tableSchemaQuery, table)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	columns := make([]ColumnInfo, 0)
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.ColumnName, &col.DataType); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// rowsToMaps converts sql.Rows to a slice of maps keyed by column name.
func rowsToMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			val := values[i]

			if val == nil {
				row[col] = nil
				continue
			}

			// Convert driver types for JSON compatibility
			switch v := val.(type) {
			case []byte:
				row[col] = string(v)
			case time.Time:
				row[col] = v.Format(time.RFC3339)
			default:
				row[col] = v
			}
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
