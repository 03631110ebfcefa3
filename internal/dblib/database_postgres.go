package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresHandler implements DatabaseHandler for PostgreSQL databases.
type PostgresHandler struct{}

// splitSchema extracts schema and relation name, defaulting to public.
func splitSchema(tableName string) (string, string) {
	if dot := strings.IndexByte(tableName, '.'); dot != -1 {
		return tableName[:dot], tableName[dot+1:]
	}
	return "public", tableName
}

// loadColumnsPostgreSQL loads columns for a PostgreSQL table.
func loadColumnsPostgreSQL(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	schema, rel := splitSchema(tableName)

	query := `SELECT column_name, data_type, is_nullable, column_default,
			COALESCE(is_identity, 'NO'), COALESCE(is_generated, 'NEVER')
			FROM information_schema.columns
			WHERE table_schema = $1 AND table_name = $2
			ORDER BY ordinal_position`
	rows, err := db.QueryContext(ctx, query, schema, rel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable, identity, generated string
		var dflt sql.NullString
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &dflt, &identity, &generated); err != nil {
			return nil, err
		}
		col.Nullable = strings.EqualFold(nullable, "yes")
		col.HasDefault = dflt.Valid
		col.Default = dflt.String
		col.AutoIncrement = strings.EqualFold(identity, "yes") ||
			strings.HasPrefix(strings.ToLower(dflt.String), "nextval(")
		col.Generated = !strings.EqualFold(generated, "never")
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tableName)
	}

	pk, err := primaryKeyPostgreSQL(ctx, db, tableName)
	if err != nil {
		return nil, err
	}
	markPrimaryKey(columns, pk)
	return columns, nil
}

func primaryKeyPostgreSQL(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	schema, rel := splitSchema(tableName)
	pkQuery := `SELECT a.attname
	            FROM pg_index i
	            JOIN pg_class c ON c.oid = i.indrelid
	            JOIN pg_namespace n ON n.oid = c.relnamespace
	            JOIN LATERAL unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord) ON TRUE
	            JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
	            WHERE n.nspname = $1 AND c.relname = $2 AND i.indisprimary
	            ORDER BY k.ord`
	return queryStrings(ctx, db, pkQuery, schema, rel)
}

func markPrimaryKey(columns []Column, pk []string) {
	set := make(map[string]bool, len(pk))
	for _, c := range pk {
		set[c] = true
	}
	for i := range columns {
		if set[columns[i].Name] {
			columns[i].PrimaryKey = true
			columns[i].Nullable = false
		}
	}
}

// LoadColumns loads column metadata for a PostgreSQL table.
func (h *PostgresHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	return loadColumnsPostgreSQL(ctx, db, tableName)
}

// PrimaryKey returns the primary key columns of a PostgreSQL table.
func (h *PostgresHandler) PrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	return primaryKeyPostgreSQL(ctx, db, tableName)
}

// ListTables returns tables in the public schema.
func (h *PostgresHandler) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	return queryStrings(ctx, db,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name")
}

// QuoteIdent quotes an identifier (table/column name) for PostgreSQL using double quotes.
func (h *PostgresHandler) QuoteIdent(ident string) string {
	return QuoteIdent(PostgreSQL, ident)
}
