package dblib

import (
	"context"
	"database/sql"
	"fmt"
)

// Driver is everything the grid and commit pipeline need from a database.
type Driver interface {
	Query(ctx context.Context, query string) (*ResultSet, error)
	SelectFromTable(ctx context.Context, table string, opts SelectOptions) (*ResultSet, error)
	GetTableSchema(ctx context.Context, table string) (*TableSchema, error)
	// Transaction runs stmts in order inside one transaction. Statements
	// with a RETURNING clause report their row. An UPDATE or DELETE that
	// affects nothing aborts the transaction with ErrNoRowsAffected.
	Transaction(ctx context.Context, stmts []string) ([]StatementResult, error)
}

// DatabaseHandler defines database-specific operations for a particular
// database type. Each backend implements schema introspection and the small
// dialect differences the rest of the package needs.
type DatabaseHandler interface {
	// LoadColumns loads column metadata for a table in table order.
	LoadColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error)

	// PrimaryKey returns primary key column names in key order, or an empty
	// slice when the table has none.
	PrimaryKey(ctx context.Context, db *sql.DB, table string) ([]string, error)

	// ListTables returns user table names.
	ListTables(ctx context.Context, db *sql.DB) ([]string, error)

	// QuoteIdent quotes an identifier if needed.
	QuoteIdent(ident string) string
}

// NewDatabaseHandler returns the handler for dbType.
func NewDatabaseHandler(dbType DatabaseType) (DatabaseHandler, error) {
	switch dbType {
	case SQLite:
		return &SQLiteHandler{}, nil
	case PostgreSQL:
		return &PostgresHandler{}, nil
	case MySQL:
		return &MySQLHandler{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %v", dbType)
	}
}
