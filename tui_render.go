package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"tedgrid/internal/commit"
	"tedgrid/internal/grid"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("238"))
	keyStyle      = headerStyle.Foreground(lipgloss.Color("11"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	focusStyle    = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
	editStyle     = lipgloss.NewStyle().Background(lipgloss.Color("8")).Foreground(lipgloss.Color("15"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("237"))
	changedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	newRowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	removedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Strikethrough(true)
	nullStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	statusStyle   = lipgloss.NewStyle().Background(lipgloss.Color("8")).Foreground(lipgloss.Color("15"))
	errorStyle    = statusStyle.Background(lipgloss.Color("1"))
)

func (m Model) View() string {
	var b strings.Builder

	switch {
	case m.store == nil && m.errorMsg != "" && !m.paletteOpen:
		return m.renderError()
	case m.store == nil:
		b.WriteString(strings.Repeat("\n", max(m.height-chromeLines, 0)))
	case m.previewing:
		b.WriteString(m.renderPreview())
	default:
		b.WriteString(m.renderTable())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	if m.paletteOpen {
		b.WriteString("\n")
		b.WriteString(m.renderPalette())
	}
	return b.String()
}

// visibleColumns lists pinned columns followed by the scrolled window.
func (m Model) visibleColumns() []int {
	w := m.viewport.Window()
	pinned := min(m.viewport.PinnedColumns(), m.store.ColumnCount())
	cols := make([]int, 0, pinned+w.ColEnd-w.ColStart)
	for c := 0; c < pinned; c++ {
		cols = append(cols, c)
	}
	for c := w.ColStart; c < w.ColEnd; c++ {
		cols = append(cols, c)
	}
	return cols
}

func (m Model) renderTable() string {
	var b strings.Builder
	cols := m.visibleColumns()
	focusRow, focusCol, _ := m.store.Focus()

	// Header
	b.WriteString(headerStyle.Render(strings.Repeat(" ", gutterWidth)))
	m.eachCell(cols, func(col, width int) {
		h, _ := m.store.Header(col)
		label := h.DisplayLabel
		style := headerStyle
		if h.IsPrimaryKey {
			label = "✦" + label
			style = keyStyle
		}
		if col == focusCol {
			style = style.Underline(true)
		}
		b.WriteString(style.Render(padCellToWidth(label, width)))
		b.WriteString(borderStyle.Render("│"))
	})
	b.WriteString("\n")

	// Separator
	b.WriteString(borderStyle.Render(strings.Repeat("━", gutterWidth)))
	m.eachCell(cols, func(_, width int) {
		b.WriteString(borderStyle.Render(strings.Repeat("━", width) + "┿"))
	})

	w := m.viewport.Window()
	for row := w.RowStart; row < w.RowEnd; row++ {
		b.WriteString("\n")
		state := m.store.RowChangeState(row)
		b.WriteString(rowMarker(state, m.store.IsRowSelected(row)))
		m.eachCell(cols, func(col, width int) {
			if m.editing && row == focusRow && col == focusCol {
				b.WriteString(editStyle.Render(padCellToWidth(m.editor.Value()+"█", width)))
			} else {
				b.WriteString(m.renderCell(row, col, width, state, row == focusRow && col == focusCol))
			}
			b.WriteString(borderStyle.Render("│"))
		})
	}

	// Keep the status bar at the bottom of the screen.
	for n := w.Rows(); n < m.gridHeight(); n++ {
		b.WriteString("\n")
	}
	return b.String()
}

// eachCell calls fn for every visible column with the width it gets on
// screen, stopping at the right edge of the terminal.
func (m Model) eachCell(cols []int, fn func(col, width int)) {
	widths := m.store.ColumnWidths()
	remaining := m.width - gutterWidth
	for _, col := range cols {
		if remaining <= 1 {
			return
		}
		width := min(widths[col], remaining-1)
		fn(col, width)
		remaining -= width + 1
	}
}

func rowMarker(state grid.RowState, selected bool) string {
	style, marker := lipgloss.NewStyle(), "  "
	switch state {
	case grid.RowStateNew:
		style, marker = newRowStyle, "+ "
	case grid.RowStateRemoved:
		style, marker = removedStyle.UnsetStrikethrough(), "✗ "
	case grid.RowStateChanged:
		style, marker = changedStyle, "• "
	}
	if selected {
		style = style.Background(selectedStyle.GetBackground())
	}
	return style.Render(marker)
}

func (m Model) renderCell(row, col, width int, state grid.RowState, focused bool) string {
	d := m.store.DisplayValue(row, col)
	text := d.Text
	style := lipgloss.NewStyle()
	switch {
	case d.Default:
		text = "DEFAULT"
		style = nullStyle
	case d.Null:
		text = "NULL"
		style = nullStyle
	}

	switch {
	case focused:
		style = focusStyle
	case state == grid.RowStateRemoved:
		style = removedStyle
	case m.store.IsCellChanged(row, col):
		style = changedStyle
	case state == grid.RowStateNew:
		style = newRowStyle
	}
	if !focused && m.store.IsCellSelected(row, col) {
		style = style.Background(selectedStyle.GetBackground())
	}
	return style.Render(padCellToWidth(text, width))
}

func (m Model) renderStatusBar() string {
	left := m.dbName
	if m.store != nil {
		left = fmt.Sprintf("%s │ %s", left, truncateString(m.source, 40))
		if row, col, ok := m.store.Focus(); ok {
			h, _ := m.store.Header(col)
			left += fmt.Sprintf(" │ Row %d/%d %s", row+1, m.store.GetRowsCount(), h.Name)
		}
		if n := m.store.ChangeCount(); n > 0 {
			left += fmt.Sprintf(" │ %d pending", n)
		}
		if m.readOnly != "" {
			left += " │ read-only"
		}
	}

	style := statusStyle
	right := m.statusMsg
	if m.errorMsg != "" {
		style = errorStyle
		right = m.errorMsg
	}
	if right != "" {
		left += " │ " + right
	}
	return style.Width(m.width).Render(truncateString(left, m.width))
}

func (m Model) renderPalette() string {
	var b strings.Builder
	b.WriteString(m.palette.View())
	for _, s := range m.paletteSuggestions() {
		b.WriteString("\n  ")
		b.WriteString(highlightMatches(s.name, s.positions))
	}
	return b.String()
}

// renderPreview lists the statements a commit would run.
func (m Model) renderPreview() string {
	lines := []string{headerStyle.Width(m.width).Render("Pending SQL (ctrl+s to commit, esc to close)")}
	batch, err := commit.Prepare(m.store, m.schema, m.dbType)
	if err != nil {
		lines = append(lines, errorStyle.Render(err.Error()))
	} else {
		for _, stmt := range strings.Split(commit.Preview(batch.Plans), "\n") {
			lines = append(lines, truncateString(stmt, m.width))
		}
	}

	height := m.gridHeight() + chromeLines - 1
	if len(lines) > height {
		lines = append(lines[:height-1], nullStyle.Render(fmt.Sprintf("... %d more", len(lines)-height+1)))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderError() string {
	return fmt.Sprintf("Error: %s\n\nPress ':' to open a table or 'q' to quit.", m.errorMsg)
}

// padCellToWidth fits s into exactly width terminal cells.
func padCellToWidth(s string, width int) string {
	s = strings.NewReplacer("\r\n", "↵", "\n", "↵", "\t", " ").Replace(s)
	return runewidth.FillRight(truncateString(s, width), width)
}

// truncateString cuts s to maxLen terminal cells, marking the cut with an
// ellipsis.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxLen {
		return s
	}
	return runewidth.Truncate(s, maxLen, "…")
}
