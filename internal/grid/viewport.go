package grid

// Size is a container size in display units (terminal cells for the TUI).
type Size struct {
	Width, Height int
}

// Offset is a scroll position in display units.
type Offset struct {
	Top, Left int
}

// Window is the range of rows and scrollable columns to render. Ends are
// exclusive. Pinned columns are always rendered and never part of the range.
type Window struct {
	RowStart, RowEnd int
	ColStart, ColEnd int
}

// Rows returns the number of rows in the window.
func (w Window) Rows() int {
	return w.RowEnd - w.RowStart
}

// ComputeVisibleRange works out which rows and columns intersect the visible
// area, padded by renderAhead rows on each side. columnWidths covers every
// column; the first pinnedColumns of them are pinned to the left edge.
func ComputeVisibleRange(container Size, columnWidths []int, rowHeight int, scroll Offset,
	totalRowCount, renderAhead, pinnedColumns int) Window {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	if renderAhead < 0 {
		renderAhead = 0
	}
	if totalRowCount < 0 {
		totalRowCount = 0
	}
	top := scroll.Top
	if top < 0 {
		top = 0
	}

	rowStart := clampRange(top/rowHeight-renderAhead, 0, totalRowCount)
	visibleRows := (container.Height + rowHeight - 1) / rowHeight
	if visibleRows < 0 {
		visibleRows = 0
	}
	rowEnd := clampRange(rowStart+visibleRows+2*renderAhead, rowStart, totalRowCount)

	pinned := clampRange(pinnedColumns, 0, len(columnWidths))
	pinnedWidth := 0
	for _, w := range columnWidths[:pinned] {
		pinnedWidth += w
	}
	left := scroll.Left
	if left < 0 {
		left = 0
	}
	avail := container.Width - pinnedWidth

	colStart, colEnd := pinned, pinned
	if avail > 0 {
		x := 0
		colStart = len(columnWidths)
		for i := pinned; i < len(columnWidths); i++ {
			if x+columnWidths[i] > left {
				colStart = i
				break
			}
			x += columnWidths[i]
		}
		colEnd = colStart
		for i := colStart; i < len(columnWidths); i++ {
			if x >= left+avail {
				break
			}
			x += columnWidths[i]
			colEnd = i + 1
		}
	}

	return Window{RowStart: rowStart, RowEnd: rowEnd, ColStart: colStart, ColEnd: colEnd}
}

func clampRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Viewport keeps the scroll state of one grid and caches its visible window.
// The window is recomputed only when an input changes.
type Viewport struct {
	rowHeight   int
	renderAhead int
	pinned      int

	size     Size
	offset   Offset
	widths   []int
	rowCount int

	window Window
}

// NewViewport creates a viewport for rows of the given height.
func NewViewport(rowHeight, renderAhead, pinnedColumns int) *Viewport {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	return &Viewport{rowHeight: rowHeight, renderAhead: renderAhead, pinned: pinnedColumns}
}

// Window returns the cached visible range.
func (v *Viewport) Window() Window {
	return v.window
}

// Offset returns the current scroll position.
func (v *Viewport) Offset() Offset {
	return v.offset
}

// Size returns the container size.
func (v *Viewport) Size() Size {
	return v.size
}

// PinnedColumns returns how many leading columns never scroll.
func (v *Viewport) PinnedColumns() int {
	return clampRange(v.pinned, 0, len(v.widths))
}

// SetSize records a container resize.
func (v *Viewport) SetSize(s Size) {
	if s == v.size {
		return
	}
	v.size = s
	v.clamp()
	v.recompute()
}

// SetRowCount records a change in the number of rows.
func (v *Viewport) SetRowCount(n int) {
	if n == v.rowCount {
		return
	}
	v.rowCount = n
	v.clamp()
	v.recompute()
}

// SetColumnWidths records new column widths.
func (v *Viewport) SetColumnWidths(widths []int) {
	if equalInts(widths, v.widths) {
		return
	}
	v.widths = append(v.widths[:0], widths...)
	v.clamp()
	v.recompute()
}

// ScrollTo moves to an absolute position, clamped to the content.
func (v *Viewport) ScrollTo(o Offset) {
	prev := v.offset
	v.offset = o
	v.clamp()
	if v.offset != prev {
		v.recompute()
	}
}

// ScrollBy moves relative to the current position.
func (v *Viewport) ScrollBy(dTop, dLeft int) {
	v.ScrollTo(Offset{Top: v.offset.Top + dTop, Left: v.offset.Left + dLeft})
}

// ContentSize is the full size of the scrollable content. Width excludes
// pinned columns.
func (v *Viewport) ContentSize() Size {
	w := 0
	for _, cw := range v.widths[v.PinnedColumns():] {
		w += cw
	}
	return Size{Width: w, Height: v.rowCount * v.rowHeight}
}

func (v *Viewport) pinnedWidth() int {
	w := 0
	for _, cw := range v.widths[:v.PinnedColumns()] {
		w += cw
	}
	return w
}

// clamp keeps the offset inside [0, content - visible].
func (v *Viewport) clamp() {
	content := v.ContentSize()
	maxTop := content.Height - v.size.Height
	if maxTop < 0 {
		maxTop = 0
	}
	maxLeft := content.Width - (v.size.Width - v.pinnedWidth())
	if maxLeft < 0 {
		maxLeft = 0
	}
	v.offset.Top = clampRange(v.offset.Top, 0, maxTop)
	v.offset.Left = clampRange(v.offset.Left, 0, maxLeft)
}

func (v *Viewport) recompute() {
	v.window = ComputeVisibleRange(v.size, v.widths, v.rowHeight, v.offset, v.rowCount, v.renderAhead, v.pinned)
}

// ColumnPosition returns the x coordinate of a column's left edge relative
// to the container, taking scrolling into account. Pinned columns ignore the
// horizontal offset.
func (v *Viewport) ColumnPosition(col int) int {
	pinned := v.PinnedColumns()
	x := 0
	if col < pinned {
		for _, w := range v.widths[:col] {
			x += w
		}
		return x
	}
	for i := pinned; i < col && i < len(v.widths); i++ {
		x += v.widths[i]
	}
	return v.pinnedWidth() + x - v.offset.Left
}

// EnsureVisible scrolls the least amount needed to show the cell at (row,
// col). A negative col leaves horizontal scrolling alone.
func (v *Viewport) EnsureVisible(row, col int) {
	o := v.offset
	if row >= 0 {
		top := row * v.rowHeight
		bottom := top + v.rowHeight
		if top < o.Top {
			o.Top = top
		} else if bottom > o.Top+v.size.Height {
			o.Top = bottom - v.size.Height
		}
	}
	pinned := v.PinnedColumns()
	if col >= pinned && col < len(v.widths) {
		start := 0
		for i := pinned; i < col; i++ {
			start += v.widths[i]
		}
		end := start + v.widths[col]
		avail := v.size.Width - v.pinnedWidth()
		switch {
		case end-start >= avail:
			o.Left = start
		case start < o.Left:
			o.Left = start
		case end > o.Left+avail:
			o.Left = end - avail
		}
	}
	v.ScrollTo(o)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
