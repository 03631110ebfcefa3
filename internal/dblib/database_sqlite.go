package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteHandler implements DatabaseHandler for SQLite databases.
type SQLiteHandler struct{}

// loadColumnsSQLite loads columns for a SQLite table. table_xinfo is used
// rather than table_info so generated columns are reported with their
// hidden flag (2 = virtual, 3 = stored).
func loadColumnsSQLite(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	query := fmt.Sprintf("PRAGMA table_xinfo(%s)", QuoteQualified(SQLite, tableName))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	var pkCount int
	for rows.Next() {
		var (
			cid       int
			col       Column
			notNull   int
			dfltValue sql.NullString
			pk        int
			hidden    int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dfltValue, &pk, &hidden); err != nil {
			return nil, err
		}
		if hidden == 1 {
			// Hidden columns of virtual tables are not addressable.
			continue
		}
		col.Nullable = notNull == 0 && pk == 0
		col.PrimaryKey = pk > 0
		col.HasDefault = dfltValue.Valid
		col.Default = dfltValue.String
		col.Generated = hidden == 2 || hidden == 3
		if pk > 0 {
			pkCount++
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tableName)
	}

	// A lone INTEGER PRIMARY KEY is an alias for rowid and fills itself in.
	if pkCount == 1 {
		for i := range columns {
			if columns[i].PrimaryKey && strings.EqualFold(strings.TrimSpace(columns[i].Type), "INTEGER") {
				columns[i].AutoIncrement = true
			}
		}
	}
	return columns, nil
}

// primaryKeyOrderSQLite returns primary key column names in key order, which
// may differ from column order for composite keys.
func primaryKeyOrderSQLite(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", QuoteQualified(SQLite, tableName))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOrdinal := map[int]string{}
	for rows.Next() {
		var cid, notNull, pk int
		var name, typ string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			byOrdinal[pk] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(byOrdinal))
	for i := 1; i <= len(byOrdinal); i++ {
		keys = append(keys, byOrdinal[i])
	}
	return keys, nil
}

// LoadColumns loads column metadata for a SQLite table, with primary key
// columns flagged.
func (h *SQLiteHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	return loadColumnsSQLite(ctx, db, tableName)
}

// PrimaryKey returns the primary key columns of a SQLite table.
func (h *SQLiteHandler) PrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	return primaryKeyOrderSQLite(ctx, db, tableName)
}

// ListTables returns user tables, skipping SQLite's internal ones.
func (h *SQLiteHandler) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
}

// QuoteIdent quotes an identifier for SQLite using double quotes.
func (h *SQLiteHandler) QuoteIdent(ident string) string {
	return QuoteIdent(SQLite, ident)
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, rows.Err()
}
