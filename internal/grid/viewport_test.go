package grid

import "testing"

func TestComputeVisibleRange_Rows(t *testing.T) {
	tests := []struct {
		name      string
		top       int
		height    int
		total     int
		wantStart int
		wantEnd   int
	}{
		{"middle", 2000, 400, 10000, 95, 125},
		{"top", 0, 400, 10000, 0, 30},
		{"near end", 199900, 400, 10000, 9990, 10000},
		{"short table", 0, 400, 3, 0, 3},
		{"empty", 0, 400, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeVisibleRange(Size{Width: 100, Height: tt.height}, nil, 20,
				Offset{Top: tt.top}, tt.total, 5, 0)
			if w.RowStart != tt.wantStart || w.RowEnd != tt.wantEnd {
				t.Errorf("got rows %d..%d, want %d..%d", w.RowStart, w.RowEnd, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestComputeVisibleRange_CoversViewport(t *testing.T) {
	w := ComputeVisibleRange(Size{Width: 100, Height: 400}, nil, 20, Offset{Top: 2000}, 10000, 5, 0)
	if w.RowStart != 95 {
		t.Fatalf("expected row start 95, got %d", w.RowStart)
	}
	if w.Rows() < 400/20+2*5 {
		t.Errorf("window of %d rows does not cover the viewport plus render-ahead", w.Rows())
	}
}

func TestComputeVisibleRange_Columns(t *testing.T) {
	widths := []int{10, 10, 10, 10, 10, 10}
	tests := []struct {
		name      string
		width     int
		left      int
		pinned    int
		wantStart int
		wantEnd   int
	}{
		{"all visible", 100, 0, 0, 0, 6},
		{"first three", 30, 0, 0, 0, 3},
		{"partial edges", 30, 5, 0, 0, 4},
		{"scrolled", 20, 20, 0, 2, 4},
		{"pinned", 30, 0, 1, 1, 3},
		{"pinned scrolled", 30, 15, 1, 2, 5},
		{"only pinned fits", 10, 0, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeVisibleRange(Size{Width: tt.width, Height: 10}, widths, 1,
				Offset{Left: tt.left}, 10, 0, tt.pinned)
			if w.ColStart != tt.wantStart || w.ColEnd != tt.wantEnd {
				t.Errorf("got cols %d..%d, want %d..%d", w.ColStart, w.ColEnd, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestViewport_ScrollClamps(t *testing.T) {
	v := NewViewport(1, 0, 0)
	v.SetColumnWidths([]int{10, 10, 10})
	v.SetRowCount(50)
	v.SetSize(Size{Width: 15, Height: 10})

	v.ScrollTo(Offset{Top: 100, Left: 100})
	if o := v.Offset(); o.Top != 40 || o.Left != 15 {
		t.Errorf("expected offset clamped to 40,15, got %+v", o)
	}
	v.ScrollBy(-100, -100)
	if o := v.Offset(); o.Top != 0 || o.Left != 0 {
		t.Errorf("expected offset clamped to 0,0, got %+v", o)
	}
	if w := v.Window(); w.RowStart != 0 || w.RowEnd != 10 || w.ColStart != 0 || w.ColEnd != 2 {
		t.Errorf("unexpected window %+v", w)
	}
}

func TestViewport_ShrinkingContentClampsOffset(t *testing.T) {
	v := NewViewport(1, 0, 0)
	v.SetSize(Size{Width: 10, Height: 10})
	v.SetRowCount(100)
	v.ScrollTo(Offset{Top: 80})
	v.SetRowCount(20)
	if o := v.Offset(); o.Top != 10 {
		t.Errorf("expected top clamped to 10, got %d", o.Top)
	}
	if w := v.Window(); w.RowEnd != 20 {
		t.Errorf("expected window to end at 20, got %d", w.RowEnd)
	}
}

func TestViewport_EnsureVisible(t *testing.T) {
	v := NewViewport(1, 0, 1)
	v.SetColumnWidths([]int{5, 10, 10, 10, 10})
	v.SetRowCount(100)
	v.SetSize(Size{Width: 25, Height: 10})

	v.EnsureVisible(15, 3)
	o := v.Offset()
	if o.Top != 6 {
		t.Errorf("expected top 6 to reveal row 15, got %d", o.Top)
	}
	// Column 3 spans 20..30 of the scrollable area, 20 cells are available.
	if o.Left != 10 {
		t.Errorf("expected left 10 to reveal column 3, got %d", o.Left)
	}
	if x := v.ColumnPosition(3); x != 15 {
		t.Errorf("expected column 3 at x=15, got %d", x)
	}
	if x := v.ColumnPosition(0); x != 0 {
		t.Errorf("pinned column should not scroll, got x=%d", x)
	}

	v.EnsureVisible(2, 1)
	if o := v.Offset(); o.Top != 2 || o.Left != 0 {
		t.Errorf("expected scroll back to 2,0, got %+v", o)
	}
}

func TestViewport_WindowCachedUntilInputsChange(t *testing.T) {
	v := NewViewport(1, 2, 0)
	v.SetColumnWidths([]int{10})
	v.SetRowCount(100)
	v.SetSize(Size{Width: 10, Height: 10})
	w := v.Window()
	v.SetSize(Size{Width: 10, Height: 10})
	v.ScrollTo(v.Offset())
	if v.Window() != w {
		t.Error("window changed without an input change")
	}
	v.ScrollBy(5, 0)
	if v.Window() == w {
		t.Error("window should move after scrolling")
	}
}
