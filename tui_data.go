package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"tedgrid/internal/commit"
	"tedgrid/internal/dblib"
)

const (
	loadTimeout   = 30 * time.Second
	commitTimeout = 60 * time.Second
)

// Messages
type tableLoadedMsg struct {
	source    string
	rs        *dblib.ResultSet
	schema    *dblib.TableSchema
	readOnly  string
	truncated bool
}

type tablesMsg struct {
	tables []string
}

type storeChangedMsg struct{}

type committedMsg struct {
	batch   *commit.Batch
	results []dblib.StatementResult
}

type commitFailedMsg struct {
	err error
}

type errorMsg struct {
	err error
}

// openTableCmd loads the first page of a table together with its schema.
func openTableCmd(driver dblib.Driver, table string, pageSize int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		var (
			rs     *dblib.ResultSet
			schema *dblib.TableSchema
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			schema, err = driver.GetTableSchema(gctx, table)
			return err
		})
		g.Go(func() error {
			var err error
			rs, err = driver.SelectFromTable(gctx, table, dblib.SelectOptions{Limit: pageSize})
			return err
		})
		if err := g.Wait(); err != nil {
			return errorMsg{fmt.Errorf("failed to open %s: %w", table, err)}
		}

		return tableLoadedMsg{
			source:    table,
			rs:        rs,
			schema:    schema,
			truncated: pageSize > 0 && len(rs.Rows) >= pageSize,
		}
	}
}

// runQueryCmd runs a free-form SELECT. The result is editable only when the
// query reads plain columns from a single table and includes its key.
func runQueryCmd(driver dblib.Driver, query string, pageSize int) tea.Cmd {
	return func() tea.Msg {
		query, err := validateAndCleanSQL(query)
		if err != nil {
			return errorMsg{err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		var (
			rs       *dblib.ResultSet
			schema   *dblib.TableSchema
			readOnly string
		)
		target, parseErr := dblib.ParseQueryTarget(query)
		if parseErr != nil {
			readOnly = parseErr.Error()
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			rs, err = driver.Query(gctx, query)
			return err
		})
		if target != nil {
			g.Go(func() error {
				s, err := driver.GetTableSchema(gctx, target.Table)
				if err != nil {
					// The query itself may still succeed; it is just not writable.
					readOnly = err.Error()
					return nil
				}
				schema = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return errorMsg{fmt.Errorf("query failed: %w", err)}
		}

		if schema != nil {
			for _, pk := range schema.PrimaryKey {
				if !slices.Contains(rs.ColumnNames, pk) {
					readOnly = fmt.Sprintf("result does not include key column %s", pk)
					schema = nil
					break
				}
			}
		}

		truncated := pageSize > 0 && len(rs.Rows) > pageSize
		if truncated {
			rs.Rows = rs.Rows[:pageSize]
		}
		msg := tableLoadedMsg{source: query, rs: rs, schema: schema, readOnly: readOnly, truncated: truncated}
		if schema == nil && readOnly == "" {
			msg.readOnly = "table schema unavailable"
		}
		return msg
	}
}

func listTablesCmd(lister tableLister) tea.Cmd {
	if lister == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		tables, err := lister.ListTables(ctx)
		if err != nil {
			return errorMsg{fmt.Errorf("failed to list tables: %w", err)}
		}
		return tablesMsg{tables: tables}
	}
}

// commitCmd runs a prepared batch. The result is merged into the store by
// Update so that the store is only touched from the program goroutine.
func commitCmd(driver dblib.Driver, batch *commit.Batch) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		defer cancel()
		results, err := batch.Run(ctx, driver)
		if err != nil {
			return commitFailedMsg{err}
		}
		return committedMsg{batch: batch, results: results}
	}
}
