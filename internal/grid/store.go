package grid

import (
	"sort"
	"time"

	"github.com/mattn/go-runewidth"

	"tedgrid/internal/dblib"
)

const (
	// MinColumnWidth is the narrowest a column can be resized to.
	MinColumnWidth = 3
	// MaxInitialWidth caps the width computed from header and sample data.
	MaxInitialWidth = 40
	// widthSampleRows bounds how many rows are measured for initial widths.
	widthSampleRows = 100
)

// Header describes one column of the grid.
type Header struct {
	Name         string
	DisplayLabel string
	InitialWidth int
	Width        int
	Type         ColumnType
	DeclType     string
	IsPrimaryKey bool
	Resizable    bool
}

// Codec returns the value codec for the column.
func (h Header) Codec() Codec {
	return CodecFor(h.Type)
}

// Row is one record: the last committed values plus sparse pending edits.
// ChangeToken 0 means the row is not in the change log.
type Row struct {
	Raw         map[string]any
	Change      map[string]any
	ChangeToken int
	IsNewRow    bool
	IsRemoved   bool
}

// Value returns the pending value for col if there is one, else the raw value.
func (r *Row) Value(col string) (any, bool) {
	if v, ok := r.Change[col]; ok {
		return v, true
	}
	v, ok := r.Raw[col]
	return v, ok
}

// Pending reports whether the row has anything to commit.
func (r *Row) Pending() bool {
	return len(r.Change) > 0 || r.IsNewRow || r.IsRemoved
}

// RowState summarises a row for rendering.
type RowState int

const (
	RowStateNormal RowState = iota
	RowStateChanged
	RowStateNew
	RowStateRemoved
)

// CommittedRow pairs a logged row with the values the database reported back
// for it (RETURNING columns, generated keys).
type CommittedRow struct {
	Row           *Row
	UpdatedFields map[string]any
}

// Store is the editable state behind one grid view. It is owned by a single
// view and is not safe for concurrent mutation; only change listeners may run
// on another goroutine.
type Store struct {
	headers     []Header
	columnIndex map[string]int
	rows        []*Row
	changeLog   map[int]*Row
	lastToken   int

	focusRow, focusCol int
	mode               SelectionMode
	selectedRows       map[int]struct{}
	selectedRange      *Range
	anchorRow          int
	anchorCol          int

	notifier *notifier
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	primaryKey []string
	debounce   time.Duration
	fixed      map[string]bool
}

// WithPrimaryKey marks the named columns as primary key columns.
func WithPrimaryKey(cols ...string) Option {
	return func(o *storeOptions) {
		o.primaryKey = append(o.primaryKey, cols...)
	}
}

// WithDebounce overrides the change notification window. Zero notifies
// synchronously.
func WithDebounce(d time.Duration) Option {
	return func(o *storeOptions) {
		o.debounce = d
	}
}

// WithFixedWidth makes the named columns non-resizable.
func WithFixedWidth(cols ...string) Option {
	return func(o *storeOptions) {
		for _, c := range cols {
			o.fixed[c] = true
		}
	}
}

// NewStore builds a store from a driver result set.
func NewStore(rs *dblib.ResultSet, opts ...Option) *Store {
	o := storeOptions{debounce: DefaultDebounce, fixed: map[string]bool{}}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{
		changeLog:    make(map[int]*Row),
		focusRow:     -1,
		focusCol:     -1,
		anchorRow:    -1,
		anchorCol:    -1,
		selectedRows: make(map[int]struct{}),
		notifier:     newNotifier(o.debounce),
	}
	if rs == nil {
		rs = &dblib.ResultSet{}
	}
	s.headers = buildHeaders(rs, o)
	s.columnIndex = make(map[string]int, len(s.headers))
	for i, h := range s.headers {
		s.columnIndex[h.Name] = i
	}
	s.rows = buildRows(rs)
	return s
}

func buildHeaders(rs *dblib.ResultSet, o storeOptions) []Header {
	pk := make(map[string]bool, len(o.primaryKey))
	for _, c := range o.primaryKey {
		pk[c] = true
	}
	headers := make([]Header, len(rs.ColumnNames))
	for i, name := range rs.ColumnNames {
		decl := ""
		if i < len(rs.ColumnDeclTypes) {
			decl = rs.ColumnDeclTypes[i]
		}
		h := Header{
			Name:         name,
			DisplayLabel: name,
			DeclType:     decl,
			Type:         TypeFromDecl(decl),
			IsPrimaryKey: pk[name],
			Resizable:    !o.fixed[name],
		}
		h.InitialWidth = measureColumn(h, i, rs.Rows)
		h.Width = h.InitialWidth
		headers[i] = h
	}
	return headers
}

func measureColumn(h Header, col int, rows [][]any) int {
	codec := h.Codec()
	w := runewidth.StringWidth(h.DisplayLabel)
	for i, row := range rows {
		if i >= widthSampleRows {
			break
		}
		if col >= len(row) {
			continue
		}
		if cw := runewidth.StringWidth(codec.ToDisplay(row[col]).Text); cw > w {
			w = cw
		}
	}
	return clampWidth(w, MaxInitialWidth)
}

func clampWidth(w, max int) int {
	if w < MinColumnWidth {
		return MinColumnWidth
	}
	if max > 0 && w > max {
		return max
	}
	return w
}

func buildRows(rs *dblib.ResultSet) []*Row {
	rows := make([]*Row, len(rs.Rows))
	for i, values := range rs.Rows {
		raw := make(map[string]any, len(rs.ColumnNames))
		for c, name := range rs.ColumnNames {
			if c < len(values) {
				raw[name] = values[c]
			} else {
				raw[name] = nil
			}
		}
		rows[i] = &Row{Raw: raw}
	}
	return rows
}

// Reset replaces the rows with a fresh result set. Pending changes and
// selection are dropped; focus is clamped. Headers are rebuilt only when the
// column list changed, so user column widths survive a refresh.
func (s *Store) Reset(rs *dblib.ResultSet) {
	if rs == nil {
		rs = &dblib.ResultSet{}
	}
	if !sameColumns(s.headers, rs.ColumnNames) {
		o := storeOptions{fixed: map[string]bool{}}
		for _, h := range s.headers {
			if h.IsPrimaryKey {
				o.primaryKey = append(o.primaryKey, h.Name)
			}
			if !h.Resizable {
				o.fixed[h.Name] = true
			}
		}
		s.headers = buildHeaders(rs, o)
		s.columnIndex = make(map[string]int, len(s.headers))
		for i, h := range s.headers {
			s.columnIndex[h.Name] = i
		}
	}
	s.rows = buildRows(rs)
	s.changeLog = make(map[int]*Row)
	s.clearSelection()
	s.clampFocus()
	s.BroadcastChange(true)
}

func sameColumns(headers []Header, names []string) bool {
	if len(headers) != len(names) {
		return false
	}
	for i, h := range headers {
		if h.Name != names[i] {
			return false
		}
	}
	return true
}

// Headers returns a copy of the column headers.
func (s *Store) Headers() []Header {
	out := make([]Header, len(s.headers))
	copy(out, s.headers)
	return out
}

// Header returns the header for column col.
func (s *Store) Header(col int) (Header, bool) {
	if col < 0 || col >= len(s.headers) {
		return Header{}, false
	}
	return s.headers[col], true
}

// ColumnIndex returns the position of the named column.
func (s *Store) ColumnIndex(name string) (int, bool) {
	i, ok := s.columnIndex[name]
	return i, ok
}

// ColumnCount returns the number of columns.
func (s *Store) ColumnCount() int {
	return len(s.headers)
}

// ColumnWidths returns the live width of every column.
func (s *Store) ColumnWidths() []int {
	widths := make([]int, len(s.headers))
	for i, h := range s.headers {
		widths[i] = h.Width
	}
	return widths
}

// SetColumnWidth resizes a column. Non-resizable columns are left alone.
func (s *Store) SetColumnWidth(col, width int) {
	if col < 0 || col >= len(s.headers) || !s.headers[col].Resizable {
		return
	}
	s.headers[col].Width = clampWidth(width, 0)
}

// GetRowsCount returns the number of rows, including new and removed rows.
func (s *Store) GetRowsCount() int {
	return len(s.rows)
}

// RowAt returns the row at index i or nil when out of range.
func (s *Store) RowAt(i int) *Row {
	if i < 0 || i >= len(s.rows) {
		return nil
	}
	return s.rows[i]
}

// GetValue returns the effective value of a cell. Out of range is nil.
func (s *Store) GetValue(row, col int) any {
	v, _ := s.Lookup(row, col)
	return v
}

// Lookup is GetValue that also reports whether the cell holds any value. An
// untouched cell of a new row is missing.
func (s *Store) Lookup(row, col int) (any, bool) {
	r := s.RowAt(row)
	if r == nil || col < 0 || col >= len(s.headers) {
		return nil, false
	}
	return r.Value(s.headers[col].Name)
}

// DisplayValue renders a cell through its column codec.
func (s *Store) DisplayValue(row, col int) Display {
	v, ok := s.Lookup(row, col)
	if !ok {
		if r := s.RowAt(row); r != nil && r.IsNewRow {
			return Display{Default: true}
		}
	}
	h, hok := s.Header(col)
	if !hok {
		return Display{Null: true}
	}
	return h.Codec().ToDisplay(v)
}

// IsCellChanged reports whether the cell has a pending edit.
func (s *Store) IsCellChanged(row, col int) bool {
	r := s.RowAt(row)
	if r == nil || col < 0 || col >= len(s.headers) {
		return false
	}
	_, ok := r.Change[s.headers[col].Name]
	return ok
}

// ChangeValue records an edit. Writing the committed value back removes the
// edit, and a row left with nothing pending leaves the change log.
func (s *Store) ChangeValue(row, col int, value any) {
	r := s.RowAt(row)
	if r == nil || col < 0 || col >= len(s.headers) {
		return
	}
	h := s.headers[col]
	// A new row has nothing committed, so an explicit NULL is still an edit.
	revert := IsDefault(value)
	if !r.IsNewRow && !revert {
		revert = h.Codec().Equal(r.Raw[h.Name], value)
	}
	if revert {
		if _, ok := r.Change[h.Name]; ok {
			delete(r.Change, h.Name)
			s.evictIfClean(r)
		}
	} else {
		s.track(r)
		r.Change[h.Name] = value
	}
	s.BroadcastChange(false)
}

// ChangeText parses editor text through the column codec and records it.
func (s *Store) ChangeText(row, col int, text string) {
	h, ok := s.Header(col)
	if !ok {
		return
	}
	s.ChangeValue(row, col, h.Codec().ToStorage(ParseInput(text)))
}

// InsertNewRow inserts an empty row at the focused row, or at the top when
// nothing is focused, and returns its index.
func (s *Store) InsertNewRow() int {
	at := 0
	if s.focusRow >= 0 {
		at = s.focusRow
	}
	return s.InsertNewRowAt(at)
}

// InsertNewRowAt inserts an empty row at index i (clamped) and focuses it.
func (s *Store) InsertNewRowAt(i int) int {
	if i < 0 {
		i = 0
	}
	if i > len(s.rows) {
		i = len(s.rows)
	}
	r := &Row{Raw: map[string]any{}, Change: map[string]any{}, IsNewRow: true}
	s.track(r)
	s.rows = append(s.rows, nil)
	copy(s.rows[i+1:], s.rows[i:])
	s.rows[i] = r
	s.shiftIndices(i, 1)

	col := s.focusCol
	if col < 0 && len(s.headers) > 0 {
		col = 0
	}
	s.focusRow, s.focusCol = i, col
	s.anchorRow, s.anchorCol = i, col
	s.BroadcastChange(false)
	return i
}

// RemoveRow drops a new row outright, or marks an existing row for deletion.
func (s *Store) RemoveRow(i int) {
	r := s.RowAt(i)
	if r == nil {
		return
	}
	if r.IsNewRow {
		delete(s.changeLog, r.ChangeToken)
		s.rows = append(s.rows[:i], s.rows[i+1:]...)
		s.shiftIndices(i, -1)
		s.clampFocus()
	} else {
		r.IsRemoved = true
		s.track(r)
	}
	s.BroadcastChange(false)
}

// RestoreRow clears a removal mark.
func (s *Store) RestoreRow(i int) {
	r := s.RowAt(i)
	if r == nil || !r.IsRemoved {
		return
	}
	r.IsRemoved = false
	s.evictIfClean(r)
	s.BroadcastChange(false)
}

// DiscardAllChanges drops every pending edit, insert and removal.
func (s *Store) DiscardAllChanges() {
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.IsNewRow {
			continue
		}
		if r.ChangeToken != 0 {
			r.Change = nil
			r.IsRemoved = false
			r.ChangeToken = 0
		}
		kept = append(kept, r)
	}
	clearTail(s.rows, len(kept))
	s.rows = kept
	s.changeLog = make(map[int]*Row)
	s.clearSelection()
	s.clampFocus()
	s.BroadcastChange(true)
}

// ApplyChanges folds a successful commit into the store: pending values and
// database reported values become raw, removed rows leave the grid and the
// change log is cleared.
func (s *Store) ApplyChanges(committed []CommittedRow) {
	updated := make(map[*Row]map[string]any, len(committed))
	for _, c := range committed {
		if c.Row != nil {
			updated[c.Row] = c.UpdatedFields
		}
	}
	kept := s.rows[:0]
	for _, r := range s.rows {
		fields, reported := updated[r]
		if r.ChangeToken == 0 && !reported {
			kept = append(kept, r)
			continue
		}
		if r.IsRemoved {
			continue
		}
		if r.Raw == nil {
			r.Raw = make(map[string]any, len(s.headers))
		}
		for k, v := range r.Change {
			if !IsDefault(v) {
				r.Raw[k] = v
			}
		}
		for k, v := range fields {
			r.Raw[k] = v
		}
		r.Change = nil
		r.IsNewRow = false
		r.ChangeToken = 0
		kept = append(kept, r)
	}
	clearTail(s.rows, len(kept))
	s.rows = kept
	s.changeLog = make(map[int]*Row)
	s.clearSelection()
	s.clampFocus()
	s.BroadcastChange(true)
}

func clearTail(rows []*Row, from int) {
	for i := from; i < len(rows); i++ {
		rows[i] = nil
	}
}

// GetChangedRows returns logged rows in change token order.
func (s *Store) GetChangedRows() []*Row {
	rows := make([]*Row, 0, len(s.changeLog))
	for _, r := range s.changeLog {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ChangeToken < rows[j].ChangeToken })
	return rows
}

// HasChanges reports whether anything is waiting to be committed.
func (s *Store) HasChanges() bool {
	return len(s.changeLog) > 0
}

// ChangeCount returns the number of rows in the change log.
func (s *Store) ChangeCount() int {
	return len(s.changeLog)
}

// RowChangeState classifies row i. Removal wins over every other state.
func (s *Store) RowChangeState(i int) RowState {
	r := s.RowAt(i)
	switch {
	case r == nil:
		return RowStateNormal
	case r.IsRemoved:
		return RowStateRemoved
	case r.IsNewRow:
		return RowStateNew
	case len(r.Change) > 0:
		return RowStateChanged
	default:
		return RowStateNormal
	}
}

func (s *Store) track(r *Row) {
	if r.ChangeToken == 0 {
		s.lastToken++
		r.ChangeToken = s.lastToken
	}
	if r.Change == nil {
		r.Change = make(map[string]any)
	}
	s.changeLog[r.ChangeToken] = r
}

func (s *Store) evictIfClean(r *Row) {
	if r.Pending() || r.ChangeToken == 0 {
		return
	}
	delete(s.changeLog, r.ChangeToken)
	r.ChangeToken = 0
	r.Change = nil
}

// AddChangeListener registers fn to run after data changes. fn may be called
// from a timer goroutine.
func (s *Store) AddChangeListener(fn func()) ListenerID {
	return s.notifier.add(fn)
}

// RemoveChangeListener unregisters a listener.
func (s *Store) RemoveChangeListener(id ListenerID) {
	s.notifier.remove(id)
}

// BroadcastChange notifies listeners, immediately or after the debounce
// window.
func (s *Store) BroadcastChange(instant bool) {
	s.notifier.broadcast(instant)
}

// FlushChanges delivers a pending debounced notification now.
func (s *Store) FlushChanges() {
	s.notifier.flush()
}

// NotificationPending reports whether a debounced notification is armed.
func (s *Store) NotificationPending() bool {
	return s.notifier.pending()
}

// Close cancels any pending notification and drops all listeners.
func (s *Store) Close() {
	s.notifier.stop()
}
