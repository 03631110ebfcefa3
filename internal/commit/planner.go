// Package commit turns a grid's pending edits into SQL and runs it.
package commit

import (
	"fmt"
	"sort"
	"strings"

	"tedgrid/internal/dblib"
	"tedgrid/internal/grid"
)

// Kind is the statement a plan issues.
type Kind int

const (
	KindInsert Kind = iota
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Plan is one row's mutation. Key locates the row as last committed; NewKey
// is its identity afterwards when a key column was edited.
type Plan struct {
	Kind      Kind
	Row       *grid.Row
	Table     string
	Columns   []string
	Values    []any
	Key       map[string]any
	NewKey    map[string]any
	Returning []string
	SQL       string
}

// ValidationError blocks a commit before anything is sent to the database.
type ValidationError struct {
	Token  int // change token of the offending row, 0 for table level problems
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// BuildPlans converts logged rows into ordered mutation plans. Either every
// row yields a plan or a single *ValidationError is returned.
func BuildPlans(rows []*grid.Row, schema *dblib.TableSchema, dialect dblib.DatabaseType) ([]Plan, error) {
	if schema == nil {
		return nil, &ValidationError{Reason: "table schema is not loaded"}
	}

	ordered := make([]*grid.Row, 0, len(rows))
	for _, r := range rows {
		if r != nil && r.Pending() {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ChangeToken < ordered[j].ChangeToken })
	if len(ordered) == 0 {
		return nil, nil
	}

	if len(schema.PrimaryKey) == 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("table %s has no primary key; changes cannot be saved", schema.Name)}
	}

	b := &planBuilder{schema: schema, dialect: dialect}
	plans := make([]Plan, 0, len(ordered))
	for _, r := range ordered {
		var (
			plan Plan
			err  error
		)
		switch {
		case r.IsNewRow:
			plan, err = b.insert(r)
		case r.IsRemoved:
			plan, err = b.delete(r)
		default:
			plan, err = b.update(r)
		}
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Statements returns the SQL of each plan in order.
func Statements(plans []Plan) []string {
	stmts := make([]string, len(plans))
	for i, p := range plans {
		stmts[i] = p.SQL
	}
	return stmts
}

// Preview renders plans as a script for display.
func Preview(plans []Plan) string {
	if len(plans) == 0 {
		return ""
	}
	return strings.Join(Statements(plans), ";\n") + ";"
}

type planBuilder struct {
	schema  *dblib.TableSchema
	dialect dblib.DatabaseType
}

// editedColumns returns the row's pending columns in table order.
func (b *planBuilder) editedColumns(r *grid.Row) ([]string, []any, error) {
	for col := range r.Change {
		c, ok := b.schema.Column(col)
		if !ok {
			return nil, nil, &ValidationError{Token: r.ChangeToken,
				Reason: fmt.Sprintf("column %s does not exist in table %s", col, b.schema.Name)}
		}
		if c.Generated {
			return nil, nil, &ValidationError{Token: r.ChangeToken,
				Reason: fmt.Sprintf("column %s is generated and cannot be written", col)}
		}
	}

	var cols []string
	var vals []any
	for _, c := range b.schema.Columns {
		v, ok := r.Change[c.Name]
		if !ok || grid.IsDefault(v) {
			continue
		}
		cols = append(cols, c.Name)
		vals = append(vals, v)
	}
	return cols, vals, nil
}

func (b *planBuilder) key(r *grid.Row) (map[string]any, error) {
	key := make(map[string]any, len(b.schema.PrimaryKey))
	for _, col := range b.schema.PrimaryKey {
		v, ok := r.Raw[col]
		if !ok {
			return nil, &ValidationError{Token: r.ChangeToken,
				Reason: fmt.Sprintf("key column %s is not part of the result; row cannot be located", col)}
		}
		key[col] = v
	}
	return key, nil
}

func (b *planBuilder) insert(r *grid.Row) (Plan, error) {
	cols, vals, err := b.editedColumns(r)
	if err != nil {
		return Plan{}, err
	}

	var missing []string
	for _, c := range b.schema.Columns {
		if !c.Required() {
			continue
		}
		if v, ok := r.Change[c.Name]; !ok || grid.IsDefault(v) {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return Plan{}, &ValidationError{Token: r.ChangeToken,
			Reason: fmt.Sprintf("new row is missing required column(s): %s", strings.Join(missing, ", "))}
	}

	plan := Plan{
		Kind:      KindInsert,
		Row:       r,
		Table:     b.schema.Name,
		Columns:   cols,
		Values:    vals,
		Returning: b.returning(),
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(dblib.QuoteQualified(b.dialect, b.schema.Name))
	switch {
	case len(cols) > 0:
		sb.WriteString(" (")
		sb.WriteString(b.quoteList(cols))
		sb.WriteString(") VALUES (")
		for i, v := range vals {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(dblib.FormatLiteral(b.dialect, v))
		}
		sb.WriteString(")")
	case b.dialect == dblib.MySQL:
		sb.WriteString(" () VALUES ()")
	default:
		sb.WriteString(" DEFAULT VALUES")
	}
	b.writeReturning(&sb, plan.Returning)
	plan.SQL = sb.String()
	return plan, nil
}

func (b *planBuilder) update(r *grid.Row) (Plan, error) {
	cols, vals, err := b.editedColumns(r)
	if err != nil {
		return Plan{}, err
	}
	if len(cols) == 0 {
		return Plan{}, &ValidationError{Token: r.ChangeToken, Reason: "row has no values to update"}
	}
	key, err := b.key(r)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Kind:      KindUpdate,
		Row:       r,
		Table:     b.schema.Name,
		Columns:   cols,
		Values:    vals,
		Key:       key,
		Returning: b.returning(),
	}
	for _, col := range b.schema.PrimaryKey {
		if v, ok := r.Change[col]; ok && !grid.IsDefault(v) {
			if plan.NewKey == nil {
				plan.NewKey = make(map[string]any, len(key))
				for k, kv := range key {
					plan.NewKey[k] = kv
				}
			}
			plan.NewKey[col] = v
		}
	}

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = dblib.QuoteIdent(b.dialect, col) + " = " + dblib.FormatLiteral(b.dialect, vals[i])
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(dblib.QuoteQualified(b.dialect, b.schema.Name))
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(sets, ", "))
	sb.WriteString(" WHERE ")
	sb.WriteString(b.where(key))
	b.writeReturning(&sb, plan.Returning)
	plan.SQL = sb.String()
	return plan, nil
}

func (b *planBuilder) delete(r *grid.Row) (Plan, error) {
	key, err := b.key(r)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Kind:  KindDelete,
		Row:   r,
		Table: b.schema.Name,
		Key:   key,
		SQL:   "DELETE FROM " + dblib.QuoteQualified(b.dialect, b.schema.Name) + " WHERE " + b.where(key),
	}, nil
}

// where renders key columns in key order. A NULL key value matches with IS NULL.
func (b *planBuilder) where(key map[string]any) string {
	parts := make([]string, 0, len(b.schema.PrimaryKey))
	for _, col := range b.schema.PrimaryKey {
		v := key[col]
		if v == nil {
			parts = append(parts, dblib.QuoteIdent(b.dialect, col)+" IS NULL")
			continue
		}
		parts = append(parts, dblib.QuoteIdent(b.dialect, col)+" = "+dblib.FormatLiteral(b.dialect, v))
	}
	return strings.Join(parts, " AND ")
}

func (b *planBuilder) returning() []string {
	if !dblib.SupportsReturning(b.dialect) {
		return nil
	}
	return b.schema.ColumnNames()
}

func (b *planBuilder) writeReturning(sb *strings.Builder, cols []string) {
	if len(cols) == 0 {
		return
	}
	sb.WriteString(" RETURNING ")
	sb.WriteString(b.quoteList(cols))
}

func (b *planBuilder) quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = dblib.QuoteIdent(b.dialect, c)
	}
	return strings.Join(quoted, ", ")
}
