package dblib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLDriver implements Driver over database/sql.
type SQLDriver struct {
	DB      *sql.DB
	DBType  DatabaseType
	handler DatabaseHandler
}

var _ Driver = (*SQLDriver)(nil)

// Open connects to a database and verifies the connection.
func Open(ctx context.Context, dbType DatabaseType, dsn string) (*SQLDriver, error) {
	feature, ok := databaseFeatures[dbType]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %v", dbType)
	}
	db, err := sql.Open(feature.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	d, err := NewSQLDriver(db, dbType)
	if err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// NewSQLDriver wraps an existing connection pool.
func NewSQLDriver(db *sql.DB, dbType DatabaseType) (*SQLDriver, error) {
	handler, err := NewDatabaseHandler(dbType)
	if err != nil {
		return nil, err
	}
	return &SQLDriver{DB: db, DBType: dbType, handler: handler}, nil
}

// Close closes the underlying pool.
func (d *SQLDriver) Close() error {
	return d.DB.Close()
}

// Query runs a free-form query and materialises the result.
func (d *SQLDriver) Query(ctx context.Context, query string) (*ResultSet, error) {
	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	return scanResultSet(rows)
}

// SelectFromTable reads a page of a table.
func (d *SQLDriver) SelectFromTable(ctx context.Context, table string, opts SelectOptions) (*ResultSet, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	return d.Query(ctx, selectQuery(d.DBType, table, opts))
}

// GetTableSchema loads columns and the primary key of a table.
func (d *SQLDriver) GetTableSchema(ctx context.Context, table string) (*TableSchema, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	wrapErr := func(err error) (*TableSchema, error) {
		return nil, fmt.Errorf("failed to load table schema: %w", err)
	}

	columns, err := d.handler.LoadColumns(ctx, d.DB, table)
	if err != nil {
		return wrapErr(err)
	}
	pk, err := d.handler.PrimaryKey(ctx, d.DB, table)
	if err != nil {
		return wrapErr(err)
	}

	schema := &TableSchema{
		Name:        table,
		Columns:     columns,
		ColumnIndex: make(map[string]int, len(columns)),
		PrimaryKey:  pk,
	}
	for i, c := range columns {
		schema.ColumnIndex[c.Name] = i
	}
	if len(pk) == 1 {
		if c, ok := schema.Column(pk[0]); ok {
			schema.AutoIncrement = c.AutoIncrement
		}
	}
	return schema, nil
}

// ListTables returns user table names.
func (d *SQLDriver) ListTables(ctx context.Context) ([]string, error) {
	return d.handler.ListTables(ctx, d.DB)
}

// Transaction runs stmts in one transaction and rolls everything back on the
// first failure.
func (d *SQLDriver) Transaction(ctx context.Context, stmts []string) ([]StatementResult, error) {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx failed: %w", err)
	}

	results := make([]StatementResult, 0, len(stmts))
	for i, stmt := range stmts {
		res, err := execStatement(ctx, tx, stmt)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("rollback failed", "error", rbErr)
			}
			return nil, &StatementError{Index: i, SQL: stmt, Err: err}
		}
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	return results, nil
}

func execStatement(ctx context.Context, tx *sql.Tx, stmt string) (StatementResult, error) {
	var res StatementResult
	verb := leadingKeyword(stmt)

	if hasReturningClause(stmt) {
		rows, err := tx.QueryContext(ctx, stmt)
		if err != nil {
			return res, err
		}
		rs, err := scanResultSet(rows)
		rows.Close()
		if err != nil {
			return res, err
		}
		res.RowsAffected = int64(len(rs.Rows))
		if len(rs.Rows) > 0 {
			res.Row = make(map[string]any, len(rs.ColumnNames))
			for i, name := range rs.ColumnNames {
				res.Row[name] = rs.Rows[0][i]
			}
		}
	} else {
		result, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return res, err
		}
		if n, err := result.RowsAffected(); err == nil {
			res.RowsAffected = n
		}
		if verb == "INSERT" {
			// lib/pq does not support LastInsertId; the error is expected there.
			if id, err := result.LastInsertId(); err == nil {
				res.LastInsertID = id
			}
		}
	}

	if (verb == "UPDATE" || verb == "DELETE") && res.RowsAffected == 0 {
		return res, ErrNoRowsAffected
	}
	return res, nil
}

func scanResultSet(rows *sql.Rows) (*ResultSet, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{
		ColumnNames:     names,
		ColumnDeclTypes: make([]string, len(names)),
		Rows:            [][]any{},
	}
	for i, ct := range types {
		rs.ColumnDeclTypes[i] = ct.DatabaseTypeName()
	}

	for rows.Next() {
		values := make([]any, len(names))
		scanArgs := make([]any, len(names))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v, rs.ColumnDeclTypes[i])
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func leadingKeyword(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	end := strings.IndexAny(stmt, " \t\r\n(")
	if end == -1 {
		end = len(stmt)
	}
	return strings.ToUpper(stmt[:end])
}

// hasReturningClause looks for the RETURNING keyword outside quoted text.
func hasReturningClause(stmt string) bool {
	const kw = "RETURNING"
	var quote byte
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			continue
		}
		if i+len(kw) > len(stmt) || !strings.EqualFold(stmt[i:i+len(kw)], kw) {
			continue
		}
		before := i == 0 || !isIdentByte(stmt[i-1])
		after := i+len(kw) == len(stmt) || !isIdentByte(stmt[i+len(kw)])
		if before && after {
			return true
		}
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
