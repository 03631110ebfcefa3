package dblib

import (
	"errors"
	"fmt"
)

type DatabaseType int

const (
	SQLite DatabaseType = iota
	PostgreSQL
	MySQL
)

func (t DatabaseType) String() string {
	switch t {
	case SQLite:
		return "sqlite"
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	default:
		return fmt.Sprintf("DatabaseType(%d)", int(t))
	}
}

// ParseDatabaseType maps a config or flag value onto a DatabaseType.
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch s {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return PostgreSQL, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return 0, fmt.Errorf("unsupported database type %q", s)
	}
}

type databaseFeature struct {
	driverName string
	embedded   bool
	returning  bool
}

var databaseFeatures = map[DatabaseType]databaseFeature{
	SQLite: {
		driverName: "sqlite3",
		embedded:   true,
		returning:  true,
	},
	PostgreSQL: {
		driverName: "postgres",
		embedded:   false,
		returning:  true,
	},
	MySQL: {
		driverName: "mysql",
		embedded:   false,
		returning:  false,
	},
}

// SupportsReturning reports whether INSERT/UPDATE ... RETURNING is available.
func SupportsReturning(t DatabaseType) bool {
	return databaseFeatures[t].returning
}

// IsEmbedded reports whether the database is a local file.
func IsEmbedded(t DatabaseType) bool {
	return databaseFeatures[t].embedded
}

// ResultSet is a fully materialised query result. ColumnDeclTypes holds the
// declared type reported by the driver, or "" when unknown.
type ResultSet struct {
	ColumnNames     []string
	ColumnDeclTypes []string
	Rows            [][]any
}

// SelectOptions bounds a table read. Zero Limit means no limit.
type SelectOptions struct {
	Limit   int
	Offset  int
	OrderBy []string
}

// TableSchema is what the commit planner needs to know about a table.
type TableSchema struct {
	Name          string
	Columns       []Column
	ColumnIndex   map[string]int
	PrimaryKey    []string
	AutoIncrement bool
}

// Column returns the named column.
func (s *TableSchema) Column(name string) (Column, bool) {
	i, ok := s.ColumnIndex[name]
	if !ok {
		return Column{}, false
	}
	return s.Columns[i], true
}

// ColumnNames returns column names in table order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column describes one table column.
type Column struct {
	Name          string
	Type          string
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	HasDefault    bool
	Default       string
	Generated     bool // computed column, read-only
}

// Required reports whether an INSERT must supply a value for the column.
func (c Column) Required() bool {
	return !c.Nullable && !c.AutoIncrement && !c.HasDefault && !c.Generated
}

// StatementResult is the outcome of one statement inside a transaction. Row
// holds the RETURNING row when the statement had one.
type StatementResult struct {
	RowsAffected int64
	LastInsertID int64
	Row          map[string]any
}

// ErrNoRowsAffected is returned when an UPDATE or DELETE inside a
// transaction matched nothing.
var ErrNoRowsAffected = errors.New("statement affected no rows")

// StatementError reports which statement of a transaction failed.
type StatementError struct {
	Index int
	SQL   string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d failed: %v", e.Index+1, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}
