package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tedgrid/internal/dblib"
	"tedgrid/internal/grid"
)

// Report summarises a successful commit.
type Report struct {
	Inserted   int
	Updated    int
	Deleted    int
	Statements []string
}

// Total returns the number of rows written.
func (r *Report) Total() int {
	return r.Inserted + r.Updated + r.Deleted
}

// ConflictError means an UPDATE or DELETE found no row to change, usually
// because someone else modified or removed it since it was fetched.
type ConflictError struct {
	Plan Plan
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s on %s matched no rows; the row was changed or removed elsewhere", e.Plan.Kind, e.Plan.Table)
}

func (e *ConflictError) Unwrap() error {
	return dblib.ErrNoRowsAffected
}

// Batch is a planned commit. Prepare and Apply touch the store and belong on
// the goroutine that owns it; Run only talks to the database.
type Batch struct {
	Plans   []Plan
	Schema  *dblib.TableSchema
	Dialect dblib.DatabaseType
}

// Prepare plans every pending change in store.
func Prepare(store *grid.Store, schema *dblib.TableSchema, dialect dblib.DatabaseType) (*Batch, error) {
	plans, err := BuildPlans(store.GetChangedRows(), schema, dialect)
	if err != nil {
		return nil, err
	}
	return &Batch{Plans: plans, Schema: schema, Dialect: dialect}, nil
}

// Empty reports whether there is nothing to send.
func (b *Batch) Empty() bool {
	return len(b.Plans) == 0
}

// Run executes the batch as one transaction.
func (b *Batch) Run(ctx context.Context, driver dblib.Driver) ([]dblib.StatementResult, error) {
	if b.Empty() {
		return nil, nil
	}
	results, err := driver.Transaction(ctx, Statements(b.Plans))
	if err != nil {
		var stmtErr *dblib.StatementError
		if errors.As(err, &stmtErr) && errors.Is(err, dblib.ErrNoRowsAffected) && stmtErr.Index < len(b.Plans) {
			return nil, &ConflictError{Plan: b.Plans[stmtErr.Index]}
		}
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	if len(results) != len(b.Plans) {
		return nil, fmt.Errorf("commit failed: expected %d statement results, got %d", len(b.Plans), len(results))
	}
	return results, nil
}

// Apply merges results from Run back into store and clears its change log.
func (b *Batch) Apply(store *grid.Store, results []dblib.StatementResult) *Report {
	report := &Report{Statements: Statements(b.Plans)}
	if b.Empty() {
		return report
	}

	committed := make([]grid.CommittedRow, 0, len(b.Plans))
	for i, p := range b.Plans {
		switch p.Kind {
		case KindInsert:
			report.Inserted++
		case KindUpdate:
			report.Updated++
		case KindDelete:
			report.Deleted++
		}
		var res dblib.StatementResult
		if i < len(results) {
			res = results[i]
		}
		committed = append(committed, grid.CommittedRow{
			Row:           p.Row,
			UpdatedFields: returnedFields(store, b.Schema, p, res),
		})
	}
	store.ApplyChanges(committed)

	slog.Info("commit applied", "table", b.Schema.Name,
		"inserted", report.Inserted, "updated", report.Updated, "deleted", report.Deleted)
	return report
}

// Execute commits every pending change in store as one transaction. On
// failure the store is left untouched so the commit can be retried. Execute
// must not be called again for the same store while a call is in flight.
func Execute(ctx context.Context, driver dblib.Driver, store *grid.Store, schema *dblib.TableSchema, dialect dblib.DatabaseType) (*Report, error) {
	batch, err := Prepare(store, schema, dialect)
	if err != nil {
		return nil, err
	}
	results, err := batch.Run(ctx, driver)
	if err != nil {
		return nil, err
	}
	return batch.Apply(store, results), nil
}

// returnedFields picks the values the database reported for a row, limited
// to columns the grid displays.
func returnedFields(store *grid.Store, schema *dblib.TableSchema, p Plan, res dblib.StatementResult) map[string]any {
	if p.Kind == KindDelete {
		return nil
	}

	fields := make(map[string]any)
	for col, v := range res.Row {
		if _, ok := store.ColumnIndex(col); ok {
			fields[col] = v
		}
	}

	// Without RETURNING the generated key comes from LastInsertId.
	if res.Row == nil && p.Kind == KindInsert && schema.AutoIncrement && res.LastInsertID != 0 {
		pk := schema.PrimaryKey[0]
		if _, supplied := p.Row.Change[pk]; !supplied {
			if _, ok := store.ColumnIndex(pk); ok {
				fields[pk] = res.LastInsertID
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}
