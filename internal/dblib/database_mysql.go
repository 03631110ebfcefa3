package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MySQLHandler implements DatabaseHandler for MySQL and MariaDB.
type MySQLHandler struct{}

// loadColumnsMySQL loads columns for a MySQL table in the current database.
func loadColumnsMySQL(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	query := `SELECT column_name, column_type, is_nullable, column_default, column_key, extra
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`
	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable, key, extra string
		var dflt sql.NullString
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &dflt, &key, &extra); err != nil {
			return nil, err
		}
		extra = strings.ToLower(extra)
		col.Nullable = strings.EqualFold(nullable, "yes")
		col.PrimaryKey = key == "PRI"
		col.HasDefault = dflt.Valid
		col.Default = dflt.String
		col.AutoIncrement = strings.Contains(extra, "auto_increment")
		col.Generated = strings.Contains(extra, "generated")
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tableName)
	}
	return columns, nil
}

func primaryKeyMySQL(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	return queryStrings(ctx, db, `SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position`, tableName)
}

// LoadColumns loads column metadata for a MySQL table.
func (h *MySQLHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	return loadColumnsMySQL(ctx, db, tableName)
}

// PrimaryKey returns the primary key columns of a MySQL table.
func (h *MySQLHandler) PrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	return primaryKeyMySQL(ctx, db, tableName)
}

// ListTables returns base tables of the current database.
func (h *MySQLHandler) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name`)
}

// QuoteIdent quotes an identifier for MySQL using backticks.
func (h *MySQLHandler) QuoteIdent(ident string) string {
	return QuoteIdent(MySQL, ident)
}
