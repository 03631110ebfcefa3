package dblib

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// selectQuery builds `SELECT * FROM table [ORDER BY ...] [LIMIT n OFFSET m]`.
func selectQuery(dbType DatabaseType, table string, opts SelectOptions) string {
	var builder strings.Builder
	builder.Grow(32 + len(table))

	builder.WriteString("SELECT * FROM ")
	builder.WriteString(QuoteQualified(dbType, table))
	if len(opts.OrderBy) > 0 {
		builder.WriteString(" ORDER BY ")
		for i, col := range opts.OrderBy {
			if i > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(QuoteIdent(dbType, col))
		}
	}
	if opts.Limit > 0 {
		builder.WriteString(" LIMIT ")
		builder.WriteString(strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		// SQLite and MySQL only accept OFFSET after a LIMIT.
		if opts.Limit <= 0 {
			switch dbType {
			case SQLite:
				builder.WriteString(" LIMIT -1")
			case MySQL:
				builder.WriteString(" LIMIT 18446744073709551615")
			}
		}
		builder.WriteString(" OFFSET ")
		builder.WriteString(strconv.Itoa(opts.Offset))
	}
	return builder.String()
}

// QuoteIdent safely quotes an identifier (table/column) for the target DB.
// Attempts to minimize quoting by returning the identifier unquoted when it is
// obviously safe to do so:
// - comprised of lowercase letters, digits, and underscores
// - does not start with a digit
// - not a common SQL reserved keyword
// Otherwise it applies database-appropriate quoting with escaping.
func QuoteIdent(dbType DatabaseType, ident string) string {
	if isSafeUnquotedIdent(ident) {
		return ident
	}

	switch dbType {
	case MySQL:
		escaped := strings.ReplaceAll(ident, "`", "``")
		return "`" + escaped + "`"
	default:
		escaped := strings.ReplaceAll(ident, "\"", "\"\"")
		return "\"" + escaped + "\""
	}
}

// QuoteQualified splits on '.' and quotes each identifier part independently.
func QuoteQualified(dbType DatabaseType, qualified string) string {
	parts := strings.Split(qualified, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(dbType, p)
	}
	return strings.Join(parts, ".")
}

// isSafeUnquotedIdent returns true if ident can be used without quotes in a
// portable way across supported databases (lowercase [a-z_][a-z0-9_]* and not a
// common reserved keyword).
func isSafeUnquotedIdent(ident string) bool {
	if ident == "" {
		return false
	}
	c0 := ident[0]
	if !((c0 >= 'a' && c0 <= 'z') || c0 == '_') {
		return false
	}
	for i := 1; i < len(ident); i++ {
		c := ident[i]
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	if _, ok := commonReservedIdents[ident]; ok {
		return false
	}
	return true
}

// Small, conservative set of common SQL reserved keywords to avoid unquoted.
var commonReservedIdents = map[string]struct{}{
	// DML/DDL
	"select": {}, "insert": {}, "update": {}, "delete": {}, "into": {}, "values": {},
	"create": {}, "alter": {}, "drop": {}, "table": {}, "index": {}, "view": {},
	// Clauses
	"from": {}, "where": {}, "group": {}, "order": {}, "by": {}, "having": {},
	"limit": {}, "offset": {}, "join": {}, "inner": {}, "left": {}, "right": {}, "full": {}, "outer": {},
	// Operators/Predicates
	"and": {}, "or": {}, "not": {}, "in": {}, "is": {}, "like": {}, "between": {}, "exists": {},
	// Literals
	"null": {}, "true": {}, "false": {},
	// Misc
	"as": {}, "on": {}, "default": {}, "user": {}, "key": {}, "returning": {},
}

// FormatLiteral renders a value as an inline SQL literal for dbType. NULL and
// non-finite floats render as NULL.
func FormatLiteral(dbType DatabaseType, val any) string {
	switch v := val.(type) {
	case nil:
		return "NULL"
	case bool:
		if dbType == PostgreSQL {
			if v {
				return "TRUE"
			}
			return "FALSE"
		}
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return FormatLiteral(dbType, float64(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "NULL"
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case *big.Int:
		if v == nil {
			return "NULL"
		}
		return v.String()
	case []byte:
		if dbType == PostgreSQL {
			return `'\x` + hex.EncodeToString(v) + `'::bytea`
		}
		return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'"
	case time.Time:
		return quoteString(dbType, v.Format("2006-01-02 15:04:05.999999999"))
	case string:
		return quoteString(dbType, v)
	default:
		return quoteString(dbType, fmt.Sprintf("%v", v))
	}
}

func quoteString(dbType DatabaseType, s string) string {
	if dbType == MySQL {
		// MySQL treats backslash as an escape inside string literals.
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// normalizeValue turns driver scan output into the cell value types the grid
// understands. Text arrives as []byte from some drivers; it is only kept as
// bytes for binary columns.
func normalizeValue(v any, declType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "BLOB"), strings.Contains(t, "BYTEA"), strings.Contains(t, "BINARY"),
		strings.Contains(t, "VECTOR"):
		out := make([]byte, len(b))
		copy(out, b)
		return out
	case strings.Contains(t, "INT"):
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
	case strings.Contains(t, "FLOAT"), strings.Contains(t, "DOUBLE"), strings.Contains(t, "REAL"):
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	}
	return string(b)
}
