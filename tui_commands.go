package main

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"tedgrid/internal/commit"
)

// maxSuggestions bounds the table list shown under the palette.
const maxSuggestions = 5

var (
	errEmptyQuery         = errors.New("empty query")
	errMultipleStatements = errors.New("multiple SQL statements are not supported; enter a single SELECT query")
)

// executeCommand runs a palette command.
func (m Model) executeCommand(input string) (tea.Model, tea.Cmd) {
	input = strings.TrimSpace(input)
	if input == "" {
		return m, nil
	}
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	breadcrumbs.RecordNavigation("command", name)

	switch strings.ToLower(name) {
	case "w", "commit":
		return m.startCommit()

	case "discard":
		if m.guardEdit() {
			m.store.DiscardAllChanges()
			m.syncViewport()
			m.setStatus("Discarded all pending changes")
		}
		return m, nil

	case "preview":
		return m.showPreview()

	case "reload":
		return m.reload(false)
	case "reload!":
		return m.reload(true)

	case "q", "quit":
		return m.quit(false)
	case "q!", "quit!":
		return m.quit(true)

	case "o", "open", "e", "o!", "open!", "e!":
		if arg == "" {
			m.errorMsg = "usage: open <table>"
			return m, nil
		}
		force := strings.HasSuffix(name, "!")
		if m.blockedByCommit() || !force && m.blockedByChanges() {
			return m, nil
		}
		table := m.resolveTable(arg)
		m.setStatus("Opening %s...", table)
		return m, openTableCmd(m.driver, table, m.pageSize)

	case "sql", "sql!":
		if m.blockedByCommit() || !strings.HasSuffix(name, "!") && m.blockedByChanges() {
			return m, nil
		}
		m.setStatus("Running query...")
		return m, runQueryCmd(m.driver, arg, m.pageSize)

	case "select", "with":
		if m.blockedByCommit() || m.blockedByChanges() {
			return m, nil
		}
		m.setStatus("Running query...")
		return m, runQueryCmd(m.driver, input, m.pageSize)
	}

	m.errorMsg = fmt.Sprintf("unknown command %q", name)
	return m, nil
}

// blockedByChanges refuses to replace a grid that has pending changes.
// blockedByCommit refuses to replace the grid while a commit is in flight;
// its result is applied to the current store.
func (m *Model) blockedByCommit() bool {
	if m.committing {
		m.errorMsg = "Commit in progress"
		return true
	}
	return false
}

func (m *Model) blockedByChanges() bool {
	if m.store != nil && m.store.HasChanges() {
		m.errorMsg = fmt.Sprintf("%d unsaved change(s); commit, discard or add ! to the command", m.store.ChangeCount())
		return true
	}
	return false
}

// resolveTable maps palette input to a known table name: an exact match
// wins, then the best fuzzy match, else the input as typed.
func (m Model) resolveTable(input string) string {
	for _, t := range m.tableNames {
		if strings.EqualFold(t, input) {
			return t
		}
	}
	if filtered, _ := calculateFiltered(m.tableNames, input); len(filtered) > 0 {
		return filtered[0]
	}
	return input
}

type suggestion struct {
	name      string
	positions []int
}

// paletteSuggestions lists tables matching an "open" command being typed.
func (m Model) paletteSuggestions() []suggestion {
	if !m.paletteOpen {
		return nil
	}
	name, arg, ok := strings.Cut(m.palette.Value(), " ")
	if !ok {
		return nil
	}
	switch strings.TrimSuffix(strings.ToLower(name), "!") {
	case "o", "open", "e":
	default:
		return nil
	}

	filtered, positions := calculateFiltered(m.tableNames, strings.TrimSpace(arg))
	if len(filtered) > maxSuggestions {
		filtered = filtered[:maxSuggestions]
	}
	out := make([]suggestion, len(filtered))
	for i, name := range filtered {
		out[i] = suggestion{name: name, positions: positions[i]}
	}
	return out
}

// startCommit plans the pending changes and sends them to the database.
func (m Model) startCommit() (tea.Model, tea.Cmd) {
	if !m.guardEdit() {
		return m, nil
	}
	batch, err := commit.Prepare(m.store, m.schema, m.dbType)
	if err != nil {
		m.setError(err)
		return m, nil
	}
	if batch.Empty() {
		m.setStatus("Nothing to commit")
		return m, nil
	}

	m.committing = true
	m.setStatus("Committing %d change(s)...", len(batch.Plans))
	breadcrumbs.RecordDatabase("commit")
	return m, commitCmd(m.driver, batch)
}

// showPreview switches to the list of statements a commit would run.
func (m Model) showPreview() (tea.Model, tea.Cmd) {
	if m.store == nil || !m.store.HasChanges() {
		m.setStatus("Nothing to commit")
		return m, nil
	}
	if m.readOnly != "" {
		m.errorMsg = "Read-only: " + m.readOnly
		return m, nil
	}
	m.previewing = true
	return m, nil
}

// reload reads the current source again.
func (m Model) reload(force bool) (tea.Model, tea.Cmd) {
	if m.source == "" || m.blockedByCommit() {
		return m, nil
	}
	if !force && m.blockedByChanges() {
		return m, nil
	}
	m.setStatus("Reloading...")
	if m.schema != nil && m.source == m.schema.Name {
		return m, openTableCmd(m.driver, m.source, m.pageSize)
	}
	return m, runQueryCmd(m.driver, m.source, m.pageSize)
}

// validateAndCleanSQL trims input and a trailing semicolon, and rejects
// input holding more than one statement.
func validateAndCleanSQL(sqlStr string) (string, error) {
	sqlStr = strings.TrimSpace(sqlStr)
	sqlStr = strings.TrimSuffix(sqlStr, ";")
	sqlStr = strings.TrimSpace(sqlStr)

	if sqlStr == "" {
		return "", errEmptyQuery
	}
	// After removing the trailing one, any remaining semicolon indicates
	// multiple statements.
	if strings.Contains(sqlStr, ";") {
		return "", errMultipleStatements
	}
	return sqlStr, nil
}
