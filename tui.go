package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tedgrid/internal/dblib"
	"tedgrid/internal/grid"
)

// chromeLines is the header, its separator and the status bar.
const chromeLines = 3

// gutterWidth is the row state marker drawn left of the first column.
const gutterWidth = 2

type tableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

// programSender forwards messages from background goroutines (the store's
// debounced change listener) into the running program.
type programSender struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *programSender) Attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *programSender) Send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type modelConfig struct {
	Driver   dblib.Driver
	Lister   tableLister
	DBType   dblib.DatabaseType
	DBName   string
	PageSize int
	Table    string
	Query    string
}

type Model struct {
	driver   dblib.Driver
	lister   tableLister
	dbType   dblib.DatabaseType
	dbName   string
	pageSize int
	sender   *programSender

	startTable string
	startQuery string

	store    *grid.Store
	viewport *grid.Viewport
	schema   *dblib.TableSchema
	source   string
	readOnly string

	editing bool
	editor  textinput.Model

	paletteOpen bool
	palette     textinput.Model
	tableNames  []string

	previewing bool
	committing bool
	quitArmed  bool

	width  int
	height int

	statusMsg string
	errorMsg  string
}

func NewModel(cfg modelConfig) Model {
	editor := textinput.New()
	editor.Prompt = ""
	editor.CharLimit = 0

	palette := textinput.New()
	palette.Prompt = ": "
	palette.Placeholder = "open <table> | sql <query> | commit | discard | preview | quit"
	palette.CharLimit = 4096

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	m := Model{
		driver:     cfg.Driver,
		lister:     cfg.Lister,
		dbType:     cfg.DBType,
		dbName:     cfg.DBName,
		pageSize:   pageSize,
		sender:     &programSender{},
		startTable: cfg.Table,
		startQuery: cfg.Query,
		viewport:   grid.NewViewport(1, 0, 1),
		editor:     editor,
		palette:    palette,
	}
	if cfg.Table == "" && cfg.Query == "" {
		m.openPalette("open ")
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{listTablesCmd(m.lister)}
	switch {
	case m.startQuery != "":
		cmds = append(cmds, runQueryCmd(m.driver, m.startQuery, m.pageSize))
	case m.startTable != "":
		cmds = append(cmds, openTableCmd(m.driver, m.startTable, m.pageSize))
	default:
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.Width = msg.Width - 4
		m.syncViewport()
		return m, nil

	case tea.KeyMsg:
		breadcrumbs.RecordKeyboard(msg.String())
		if msg.String() != "q" && msg.String() != "ctrl+c" {
			m.quitArmed = false
		}
		switch {
		case m.paletteOpen:
			return m.handlePaletteKeys(msg)
		case m.previewing:
			return m.handlePreviewKeys(msg)
		case m.editing:
			return m.handleEditingKeys(msg)
		}
		return m.handleNavigationKeys(msg)

	case tableLoadedMsg:
		m.loadResult(msg)
		return m, nil

	case tablesMsg:
		m.tableNames = cleanTableNames(msg.tables)
		return m, nil

	case storeChangedMsg:
		m.syncViewport()
		return m, nil

	case committedMsg:
		m.committing = false
		report := msg.batch.Apply(m.store, msg.results)
		m.errorMsg = ""
		m.statusMsg = fmt.Sprintf("Committed %d row(s): %d inserted, %d updated, %d deleted",
			report.Total(), report.Inserted, report.Updated, report.Deleted)
		m.syncViewport()
		return m, nil

	case commitFailedMsg:
		m.committing = false
		m.setError(msg.err)
		return m, nil

	case errorMsg:
		m.setError(msg.err)
		return m, nil
	}

	var cmd tea.Cmd
	if m.editing {
		m.editor, cmd = m.editor.Update(msg)
	} else if m.paletteOpen {
		m.palette, cmd = m.palette.Update(msg)
	}
	return m, cmd
}

func (m *Model) setError(err error) {
	m.errorMsg = err.Error()
	m.statusMsg = ""
	CaptureError(err)
}

func (m *Model) setStatus(format string, args ...any) {
	m.statusMsg = fmt.Sprintf(format, args...)
	m.errorMsg = ""
}

// loadResult replaces the grid contents with a freshly loaded result.
func (m *Model) loadResult(msg tableLoadedMsg) {
	m.editing = false
	m.previewing = false
	m.schema = msg.schema
	m.readOnly = msg.readOnly

	// Reloading the same source keeps column widths and focus.
	if m.store != nil && msg.source == m.source {
		m.store.Reset(msg.rs)
		if _, _, ok := m.store.Focus(); !ok {
			m.store.SetFocus(0, 0)
		}
		m.syncViewport()
		m.setStatus("Reloaded %d rows", m.store.GetRowsCount())
		return
	}

	var opts []grid.Option
	if msg.schema != nil {
		opts = append(opts, grid.WithPrimaryKey(msg.schema.PrimaryKey...))
	}
	store := grid.NewStore(msg.rs, opts...)

	if m.store != nil {
		m.store.Close()
	}
	m.store = store
	sender := m.sender
	store.AddChangeListener(func() { sender.Send(storeChangedMsg{}) })

	m.source = msg.source
	m.viewport = grid.NewViewport(1, 0, 1)
	store.SetFocus(0, 0)
	m.syncViewport()

	breadcrumbs.RecordNavigation("grid", msg.source)
	switch {
	case msg.truncated:
		m.setStatus("Showing the first %d rows of %s", store.GetRowsCount(), msg.source)
	default:
		m.setStatus("Loaded %d rows from %s", store.GetRowsCount(), msg.source)
	}
}

// gridHeight is the number of terminal lines available for data rows.
func (m Model) gridHeight() int {
	h := m.height - chromeLines
	if m.paletteOpen {
		h -= 1 + len(m.paletteSuggestions())
	}
	if h < 1 {
		h = 1
	}
	return h
}

// syncViewport feeds the current terminal size, row count and column widths
// into the viewport and keeps the focused cell on screen.
func (m *Model) syncViewport() {
	if m.store == nil {
		return
	}
	m.viewport.SetSize(grid.Size{Width: m.width - gutterWidth, Height: m.gridHeight()})
	m.viewport.SetRowCount(m.store.GetRowsCount())
	m.viewport.SetColumnWidths(m.cellWidths())
	if row, col, ok := m.store.Focus(); ok {
		m.viewport.EnsureVisible(row, col)
	}
}

// cellWidths are column widths plus the separator drawn after each cell.
func (m Model) cellWidths() []int {
	widths := m.store.ColumnWidths()
	for i := range widths {
		widths[i]++
	}
	return widths
}

// editable returns an error message when the grid cannot be changed.
func (m Model) editable() string {
	switch {
	case m.store == nil:
		return "Nothing loaded"
	case m.readOnly != "":
		return "Read-only: " + m.readOnly
	case m.committing:
		return "Commit in progress"
	}
	return ""
}
