package dblib

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StatementEvent describes one statement sent through a Driver.
type StatementEvent struct {
	Op       string // "query", "select", "schema" or "exec"
	SQL      string
	Duration time.Duration
	Err      error
}

// StatementHook observes statements after they run.
type StatementHook func(ctx context.Context, ev StatementEvent)

type hookedDriver struct {
	Driver
	hooks []StatementHook
}

// WithStatementHook wraps d so every statement is reported to hooks.
func WithStatementHook(d Driver, hooks ...StatementHook) Driver {
	if len(hooks) == 0 {
		return d
	}
	return &hookedDriver{Driver: d, hooks: hooks}
}

// NewLoggingDriver wraps d with a hook that logs every statement.
func NewLoggingDriver(d Driver, logger *slog.Logger) Driver {
	return WithStatementHook(d, LogStatements(logger))
}

// LogStatements returns a hook that logs statements at debug level and
// failures at warn level.
func LogStatements(logger *slog.Logger) StatementHook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, ev StatementEvent) {
		if ev.Err != nil {
			logger.WarnContext(ctx, "statement failed", "op", ev.Op, "sql", ev.SQL, "elapsed", ev.Duration, "error", ev.Err)
			return
		}
		logger.DebugContext(ctx, "statement", "op", ev.Op, "sql", ev.SQL, "elapsed", ev.Duration)
	}
}

func (h *hookedDriver) emit(ctx context.Context, ev StatementEvent) {
	for _, hook := range h.hooks {
		hook(ctx, ev)
	}
}

func (h *hookedDriver) Query(ctx context.Context, query string) (*ResultSet, error) {
	start := time.Now()
	rs, err := h.Driver.Query(ctx, query)
	h.emit(ctx, StatementEvent{Op: "query", SQL: query, Duration: time.Since(start), Err: err})
	return rs, err
}

func (h *hookedDriver) SelectFromTable(ctx context.Context, table string, opts SelectOptions) (*ResultSet, error) {
	start := time.Now()
	rs, err := h.Driver.SelectFromTable(ctx, table, opts)
	h.emit(ctx, StatementEvent{Op: "select", SQL: table, Duration: time.Since(start), Err: err})
	return rs, err
}

func (h *hookedDriver) GetTableSchema(ctx context.Context, table string) (*TableSchema, error) {
	start := time.Now()
	schema, err := h.Driver.GetTableSchema(ctx, table)
	h.emit(ctx, StatementEvent{Op: "schema", SQL: table, Duration: time.Since(start), Err: err})
	return schema, err
}

// Transaction reports each statement of the batch. Statements after a failing
// one never ran and are not reported.
func (h *hookedDriver) Transaction(ctx context.Context, stmts []string) ([]StatementResult, error) {
	start := time.Now()
	results, err := h.Driver.Transaction(ctx, stmts)
	elapsed := time.Since(start)

	failed := len(stmts)
	var stmtErr *StatementError
	if errors.As(err, &stmtErr) {
		failed = stmtErr.Index
	}
	for i, stmt := range stmts {
		ev := StatementEvent{Op: "exec", SQL: stmt, Duration: elapsed}
		switch {
		case i == failed:
			ev.Err = stmtErr.Err
		case i > failed:
			return results, err
		case err != nil && stmtErr == nil && i == len(stmts)-1:
			ev.Err = err
		}
		h.emit(ctx, ev)
	}
	return results, err
}
