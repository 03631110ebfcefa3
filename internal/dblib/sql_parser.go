package dblib

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver"
)

// QueryTarget describes the single base table behind a SELECT.
type QueryTarget struct {
	Table   string
	Columns []string // plain column references in select order, nil for SELECT *
}

// ParseQueryTarget parses a SELECT and reports the table its rows come from.
// Results are only editable when every output column maps back to a column
// of exactly one table, so joins, aggregates, DISTINCT, GROUP BY, set
// operations, CTEs and expressions are rejected.
func ParseQueryTarget(query string) (*QueryTarget, error) {
	p := parser.New()

	stmtNodes, _, err := p.Parse(query, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse SQL: %w", err)
	}
	if len(stmtNodes) != 1 {
		return nil, fmt.Errorf("expected one statement, got %d", len(stmtNodes))
	}

	stmt, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok {
		return nil, fmt.Errorf("expected SELECT statement, got %T", stmtNodes[0])
	}
	if stmt.With != nil {
		return nil, fmt.Errorf("common table expressions are not editable")
	}
	if stmt.Distinct {
		return nil, fmt.Errorf("DISTINCT results are not editable")
	}
	if stmt.GroupBy != nil || stmt.Having != nil {
		return nil, fmt.Errorf("grouped results are not editable")
	}
	if stmt.From == nil || stmt.From.TableRefs == nil {
		return nil, fmt.Errorf("query has no FROM clause")
	}

	table, alias, err := singleTable(stmt.From.TableRefs)
	if err != nil {
		return nil, err
	}

	target := &QueryTarget{Table: table}
	for _, field := range stmt.Fields.Fields {
		if field.WildCard != nil {
			qualifier := field.WildCard.Table.String()
			if qualifier != "" && !strings.EqualFold(qualifier, alias) && !strings.EqualFold(qualifier, table) {
				return nil, fmt.Errorf("unknown table %s in select list", qualifier)
			}
			if len(stmt.Fields.Fields) > 1 {
				return nil, fmt.Errorf("mixing * with other columns is not editable")
			}
			return target, nil
		}

		col, ok := field.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return nil, fmt.Errorf("derived column %s is not editable", formatExpr(field.Expr))
		}
		name := col.Name.Name.String()
		if as := field.AsName.String(); as != "" && as != name {
			return nil, fmt.Errorf("aliased column %s is not editable", as)
		}
		target.Columns = append(target.Columns, name)
	}
	return target, nil
}

// EditableTable returns the table a query's rows can be written back to.
func EditableTable(query string) (string, bool) {
	target, err := ParseQueryTarget(query)
	if err != nil {
		return "", false
	}
	return target.Table, true
}

// singleTable unwraps the FROM clause, which the parser always presents as a
// Join whose right side is nil for a single source.
func singleTable(refs *ast.Join) (table, alias string, err error) {
	if refs.Right != nil {
		return "", "", fmt.Errorf("joins are not editable")
	}

	var source ast.ResultSetNode = refs.Left
	if ts, ok := source.(*ast.TableSource); ok {
		alias = ts.AsName.String()
		source = ts.Source
	}

	switch src := source.(type) {
	case *ast.TableName:
		table = src.Name.String()
		if schema := src.Schema.String(); schema != "" {
			table = schema + "." + table
		}
		return table, alias, nil
	case *ast.Join:
		return singleTable(src)
	default:
		return "", "", fmt.Errorf("subqueries are not editable")
	}
}

func formatExpr(expr ast.ExprNode) string {
	switch e := expr.(type) {
	case *ast.ColumnNameExpr:
		return e.Name.Name.String()
	case *ast.AggregateFuncExpr:
		return strings.ToUpper(e.F) + "(...)"
	case *ast.FuncCallExpr:
		return strings.ToUpper(e.FnName.String()) + "(...)"
	default:
		return "expression"
	}
}
