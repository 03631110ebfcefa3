package grid

// SelectionMode says whether the selection is a set of rows or a block of
// cells.
type SelectionMode int

const (
	SelectRows SelectionMode = iota
	SelectCells
)

// Range is an inclusive rectangle of cells.
type Range struct {
	RowStart, RowEnd int
	ColStart, ColEnd int
}

// NewRange builds a normalized range from two corners.
func NewRange(row1, col1, row2, col2 int) Range {
	if row1 > row2 {
		row1, row2 = row2, row1
	}
	if col1 > col2 {
		col1, col2 = col2, col1
	}
	return Range{RowStart: row1, RowEnd: row2, ColStart: col1, ColEnd: col2}
}

// Contains reports whether (row, col) lies inside the range.
func (r Range) Contains(row, col int) bool {
	return row >= r.RowStart && row <= r.RowEnd && col >= r.ColStart && col <= r.ColEnd
}

// Focus returns the focused cell, ok is false when nothing is focused.
func (s *Store) Focus() (row, col int, ok bool) {
	if s.focusRow < 0 {
		return -1, -1, false
	}
	return s.focusRow, s.focusCol, true
}

// SetFocus focuses a cell and makes it the anchor for range extension.
// Out of range positions are ignored.
func (s *Store) SetFocus(row, col int) {
	if row < 0 || row >= len(s.rows) || col < 0 || col >= len(s.headers) {
		return
	}
	s.focusRow, s.focusCol = row, col
	s.anchorRow, s.anchorCol = row, col
}

// ClearFocus removes the focus.
func (s *Store) ClearFocus() {
	s.focusRow, s.focusCol = -1, -1
	s.anchorRow, s.anchorCol = -1, -1
}

// MoveFocus moves the focus by a delta, clamped to the grid. With extend the
// cell range from the anchor to the new focus becomes the selection.
func (s *Store) MoveFocus(dRow, dCol int, extend bool) {
	if len(s.rows) == 0 || len(s.headers) == 0 {
		return
	}
	row, col := s.focusRow, s.focusCol
	if row < 0 {
		row, col = 0, 0
	} else {
		row = clampIndex(row+dRow, len(s.rows))
		col = clampIndex(col+dCol, len(s.headers))
	}
	if !extend {
		s.SetFocus(row, col)
		return
	}
	if s.anchorRow < 0 {
		s.anchorRow, s.anchorCol = s.focusRow, s.focusCol
		if s.anchorRow < 0 {
			s.anchorRow, s.anchorCol = row, col
		}
	}
	s.focusRow, s.focusCol = row, col
	s.SelectRange(NewRange(s.anchorRow, s.anchorCol, row, col))
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// SelectionMode returns the current selection mode.
func (s *Store) SelectionMode() SelectionMode {
	return s.mode
}

// SelectRow replaces the selection with a single row.
func (s *Store) SelectRow(row int) {
	if row < 0 || row >= len(s.rows) {
		return
	}
	s.clearSelection()
	s.selectedRows[row] = struct{}{}
}

// ToggleSelectRow adds or removes a row from a row selection. A cell range
// in effect is dropped first.
func (s *Store) ToggleSelectRow(row int) {
	if row < 0 || row >= len(s.rows) {
		return
	}
	if s.mode != SelectRows {
		s.clearSelection()
	}
	if _, ok := s.selectedRows[row]; ok {
		delete(s.selectedRows, row)
		return
	}
	s.selectedRows[row] = struct{}{}
}

// SelectRange switches to cell selection with the given range, clamped to
// the grid.
func (s *Store) SelectRange(r Range) {
	if len(s.rows) == 0 || len(s.headers) == 0 {
		return
	}
	r = NewRange(
		clampIndex(r.RowStart, len(s.rows)), clampIndex(r.ColStart, len(s.headers)),
		clampIndex(r.RowEnd, len(s.rows)), clampIndex(r.ColEnd, len(s.headers)),
	)
	s.selectedRows = make(map[int]struct{})
	s.mode = SelectCells
	s.selectedRange = &r
}

// ClearSelect drops the selection and returns to row mode.
func (s *Store) ClearSelect() {
	s.clearSelection()
}

func (s *Store) clearSelection() {
	s.mode = SelectRows
	s.selectedRows = make(map[int]struct{})
	s.selectedRange = nil
}

// SelectedRange returns the cell range when in cell mode.
func (s *Store) SelectedRange() (Range, bool) {
	if s.mode != SelectCells || s.selectedRange == nil {
		return Range{}, false
	}
	return *s.selectedRange, true
}

// SelectedRows returns selected row indices in ascending order. In cell mode
// these are the rows the range spans.
func (s *Store) SelectedRows() []int {
	if r, ok := s.SelectedRange(); ok {
		rows := make([]int, 0, r.RowEnd-r.RowStart+1)
		for i := r.RowStart; i <= r.RowEnd; i++ {
			rows = append(rows, i)
		}
		return rows
	}
	rows := make([]int, 0, len(s.selectedRows))
	for i := 0; i < len(s.rows) && len(rows) < len(s.selectedRows); i++ {
		if _, ok := s.selectedRows[i]; ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// IsRowSelected reports whether row is part of the selection.
func (s *Store) IsRowSelected(row int) bool {
	if r, ok := s.SelectedRange(); ok {
		return row >= r.RowStart && row <= r.RowEnd
	}
	_, ok := s.selectedRows[row]
	return ok
}

// IsCellSelected reports whether a cell is inside the selection. In row mode
// every cell of a selected row is selected.
func (s *Store) IsCellSelected(row, col int) bool {
	if r, ok := s.SelectedRange(); ok {
		return r.Contains(row, col)
	}
	_, ok := s.selectedRows[row]
	return ok
}

// RemoveSelectedRows removes every selected row, or the focused row when
// nothing is selected. It returns how many rows were touched.
func (s *Store) RemoveSelectedRows() int {
	rows := s.SelectedRows()
	if len(rows) == 0 && s.focusRow >= 0 {
		rows = []int{s.focusRow}
	}
	// Descending so splicing new rows keeps the remaining indices valid.
	for i := len(rows) - 1; i >= 0; i-- {
		s.RemoveRow(rows[i])
	}
	return len(rows)
}

// shiftIndices keeps selection and focus attached to the same rows after a
// splice at index at. delta is +1 for an insert, -1 for a removal.
func (s *Store) shiftIndices(at, delta int) {
	if len(s.selectedRows) > 0 {
		next := make(map[int]struct{}, len(s.selectedRows))
		for i := range s.selectedRows {
			switch {
			case i < at:
				next[i] = struct{}{}
			case delta < 0 && i == at:
			default:
				next[i+delta] = struct{}{}
			}
		}
		s.selectedRows = next
	}
	if s.selectedRange != nil {
		if delta > 0 {
			if s.selectedRange.RowStart >= at {
				s.selectedRange.RowStart += delta
			}
			if s.selectedRange.RowEnd >= at {
				s.selectedRange.RowEnd += delta
			}
		} else {
			s.clearSelection()
		}
	}
	if s.anchorRow >= at && !(delta < 0 && s.anchorRow == at) {
		s.anchorRow += delta
	}
	if s.focusRow > at || (delta > 0 && s.focusRow == at) {
		s.focusRow += delta
	}
}

func (s *Store) clampFocus() {
	if s.focusRow < 0 {
		return
	}
	if len(s.rows) == 0 || len(s.headers) == 0 {
		s.ClearFocus()
		return
	}
	s.focusRow = clampIndex(s.focusRow, len(s.rows))
	s.focusCol = clampIndex(s.focusCol, len(s.headers))
	if s.anchorRow >= len(s.rows) {
		s.anchorRow = len(s.rows) - 1
	}
}
