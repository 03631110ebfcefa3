package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tedgrid/internal/grid"
)

// resizeStep is how many cells < and > change a column width by.
const resizeStep = 2

func (m Model) handleNavigationKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c", "q":
		return m.quit(false)
	case ":":
		m.openPalette("")
		return m, textinput.Blink
	}

	if m.store == nil {
		return m, nil
	}
	row, col, _ := m.store.Focus()
	page := m.gridHeight()

	switch key {
	case "up", "k":
		m.store.MoveFocus(-1, 0, false)
	case "down", "j":
		m.store.MoveFocus(1, 0, false)
	case "left", "h":
		m.store.MoveFocus(0, -1, false)
	case "right", "l":
		m.store.MoveFocus(0, 1, false)
	case "shift+up", "K":
		m.store.MoveFocus(-1, 0, true)
	case "shift+down", "J":
		m.store.MoveFocus(1, 0, true)
	case "shift+left", "H":
		m.store.MoveFocus(0, -1, true)
	case "shift+right", "L":
		m.store.MoveFocus(0, 1, true)
	case "tab":
		m.store.MoveFocus(0, 1, false)
	case "shift+tab":
		m.store.MoveFocus(0, -1, false)
	case "home", "0":
		m.store.SetFocus(row, 0)
	case "end", "$":
		m.store.SetFocus(row, m.store.ColumnCount()-1)
	case "g":
		m.store.SetFocus(0, col)
	case "G":
		m.store.SetFocus(m.store.GetRowsCount()-1, col)
	case "pgup", "ctrl+u":
		m.store.MoveFocus(-page, 0, false)
	case "pgdown", "ctrl+d":
		m.store.MoveFocus(page, 0, false)
	case " ":
		m.store.ToggleSelectRow(row)
	case "esc":
		m.store.ClearSelect()
		m.errorMsg = ""

	case "<", ">":
		delta := resizeStep
		if key == "<" {
			delta = -resizeStep
		}
		if h, ok := m.store.Header(col); ok {
			m.store.SetColumnWidth(col, h.Width+delta)
		}

	case "enter", "i":
		return m.startEditing(false)
	case "c":
		return m.startEditing(true)

	case "delete", "x":
		if m.guardEdit() {
			m.store.ChangeText(row, col, grid.NullGlyph)
			breadcrumbs.RecordEdit("null", row, col)
		}
	case "D":
		if m.guardEdit() {
			m.store.ChangeValue(row, col, grid.Default)
			breadcrumbs.RecordEdit("default", row, col)
		}
	case "o", "O":
		if m.guardEdit() {
			at := row + 1
			if key == "O" || row < 0 {
				at = max(row, 0)
			}
			at = m.store.InsertNewRowAt(at)
			breadcrumbs.RecordEdit("insert", at, 0)
		}
	case "d":
		if m.guardEdit() {
			n := m.store.RemoveSelectedRows()
			m.store.ClearSelect()
			breadcrumbs.RecordEdit("remove", row, col)
			m.setStatus("Marked %d row(s) for deletion", n)
		}
	case "u":
		if m.guardEdit() {
			rows := m.store.SelectedRows()
			if len(rows) == 0 {
				rows = []int{row}
			}
			for _, r := range rows {
				m.store.RestoreRow(r)
			}
			breadcrumbs.RecordEdit("restore", row, col)
		}
	case "ctrl+z":
		if m.guardEdit() {
			m.store.DiscardAllChanges()
			breadcrumbs.RecordEdit("discard", row, col)
			m.setStatus("Discarded all pending changes")
		}

	case "ctrl+s":
		return m.startCommit()
	case "p":
		return m.showPreview()
	case "r", "ctrl+r", "f5":
		return m.reload(false)
	}

	m.syncViewport()
	return m, nil
}

// guardEdit reports whether the grid may be changed, setting the error
// message when it may not.
func (m *Model) guardEdit() bool {
	if reason := m.editable(); reason != "" {
		m.errorMsg = reason
		return false
	}
	return true
}

// startEditing opens the cell editor on the focused cell. With clear the
// editor starts empty.
func (m Model) startEditing(clear bool) (tea.Model, tea.Cmd) {
	if !m.guardEdit() {
		return m, nil
	}
	row, col, ok := m.store.Focus()
	if !ok {
		return m, nil
	}

	text := ""
	if !clear {
		d := m.store.DisplayValue(row, col)
		switch {
		case d.Null:
			text = grid.NullGlyph
		case d.Default:
		default:
			text = d.Text
		}
	}
	m.editor.SetValue(text)
	m.editor.CursorEnd()
	m.editing = true
	m.errorMsg = ""
	return m, m.editor.Focus()
}

func (m Model) handleEditingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.stopEditing()
		return m, nil

	case "enter", "tab", "shift+tab":
		row, col, ok := m.store.Focus()
		if ok {
			m.store.ChangeText(row, col, m.editor.Value())
			breadcrumbs.RecordEdit("change", row, col)
		}
		m.stopEditing()
		switch msg.String() {
		case "enter":
			m.store.MoveFocus(1, 0, false)
		case "tab":
			m.store.MoveFocus(0, 1, false)
		case "shift+tab":
			m.store.MoveFocus(0, -1, false)
		}
		m.syncViewport()
		return m, nil

	case "ctrl+n":
		m.editor.SetValue(grid.NullGlyph)
		m.editor.CursorEnd()
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m *Model) stopEditing() {
	m.editing = false
	m.editor.Blur()
	m.editor.SetValue("")
}

func (m *Model) openPalette(initial string) {
	m.paletteOpen = true
	m.palette.SetValue(initial)
	m.palette.CursorEnd()
	m.palette.Focus()
	breadcrumbs.RecordNavigation("palette", "open")
	m.syncViewport()
}

func (m *Model) closePalette() {
	m.paletteOpen = false
	m.palette.Blur()
	m.palette.SetValue("")
	m.syncViewport()
}

func (m Model) handlePaletteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.closePalette()
		return m, nil

	case "tab":
		if suggestions := m.paletteSuggestions(); len(suggestions) > 0 {
			m.palette.SetValue("open " + suggestions[0].name)
			m.palette.CursorEnd()
		}
		return m, nil

	case "enter":
		input := m.palette.Value()
		m.closePalette()
		return m.executeCommand(input)
	}

	var cmd tea.Cmd
	m.palette, cmd = m.palette.Update(msg)
	m.syncViewport()
	return m, cmd
}

func (m Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "p", "enter":
		m.previewing = false
	case "ctrl+s":
		m.previewing = false
		return m.startCommit()
	case "ctrl+c":
		return m.quit(false)
	}
	return m, nil
}

// quit exits, asking for a second press when changes are pending.
func (m Model) quit(force bool) (tea.Model, tea.Cmd) {
	if !force && m.store != nil && m.store.HasChanges() && !m.quitArmed {
		m.quitArmed = true
		m.errorMsg = fmt.Sprintf("%d unsaved change(s); press again to quit without saving", m.store.ChangeCount())
		return m, nil
	}
	if m.store != nil {
		m.store.Close()
	}
	return m, tea.Quit
}
