package grid

import (
	"slices"
	"testing"
)

func TestMoveFocus_Clamps(t *testing.T) {
	s := newUsersStore(t)

	s.MoveFocus(1, 1, false)
	if row, col, ok := s.Focus(); !ok || row != 0 || col != 0 {
		t.Fatalf("first move without focus should land on (0,0), got (%d,%d,%v)", row, col, ok)
	}

	s.MoveFocus(10, 10, false)
	if row, col, _ := s.Focus(); row != 2 || col != 2 {
		t.Errorf("expected focus clamped to (2,2), got (%d,%d)", row, col)
	}
	s.MoveFocus(-10, -10, false)
	if row, col, _ := s.Focus(); row != 0 || col != 0 {
		t.Errorf("expected focus clamped to (0,0), got (%d,%d)", row, col)
	}
}

func TestMoveFocus_ExtendSelectsRange(t *testing.T) {
	s := newUsersStore(t)
	s.SetFocus(0, 0)
	s.MoveFocus(1, 0, true)
	s.MoveFocus(0, 1, true)

	r, ok := s.SelectedRange()
	if !ok {
		t.Fatal("expected a cell range")
	}
	if r != (Range{RowStart: 0, RowEnd: 1, ColStart: 0, ColEnd: 1}) {
		t.Errorf("unexpected range %+v", r)
	}
	if s.SelectionMode() != SelectCells {
		t.Error("expected cell selection mode")
	}
	if !s.IsCellSelected(1, 1) || s.IsCellSelected(2, 0) || s.IsCellSelected(0, 2) {
		t.Error("IsCellSelected disagrees with the range")
	}
	if got := s.SelectedRows(); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("SelectedRows() = %v, want [0 1]", got)
	}

	s.MoveFocus(1, 0, false)
	if _, ok := s.SelectedRange(); !ok {
		t.Error("plain moves should leave the selection alone")
	}
	s.ClearSelect()
	if _, ok := s.SelectedRange(); ok || s.SelectionMode() != SelectRows {
		t.Error("ClearSelect should return to an empty row selection")
	}
}

func TestToggleSelectRow(t *testing.T) {
	s := newUsersStore(t)
	s.ToggleSelectRow(2)
	s.ToggleSelectRow(0)
	s.ToggleSelectRow(5)

	if got := s.SelectedRows(); !slices.Equal(got, []int{0, 2}) {
		t.Fatalf("SelectedRows() = %v, want [0 2]", got)
	}
	if !s.IsRowSelected(2) || s.IsRowSelected(1) {
		t.Error("IsRowSelected disagrees with the selection")
	}
	if !s.IsCellSelected(0, 2) {
		t.Error("every cell of a selected row is selected")
	}

	s.ToggleSelectRow(2)
	if got := s.SelectedRows(); !slices.Equal(got, []int{0}) {
		t.Errorf("toggle should deselect, got %v", got)
	}
}

func TestSelectionFollowsSplice(t *testing.T) {
	s := newUsersStore(t)
	s.ToggleSelectRow(1)
	s.SetFocus(2, 1)

	at := s.InsertNewRowAt(0)
	if at != 0 {
		t.Fatalf("expected insert at 0, got %d", at)
	}
	if got := s.SelectedRows(); !slices.Equal(got, []int{2}) {
		t.Errorf("selection should shift with the insert, got %v", got)
	}
	if v := s.GetValue(2, 1); v != "Bob" {
		t.Errorf("selected row should still be Bob, got %v", v)
	}

	s.RemoveRow(0)
	if got := s.SelectedRows(); !slices.Equal(got, []int{1}) {
		t.Errorf("selection should shift back after removing the new row, got %v", got)
	}
}

func TestRemoveSelectedRows(t *testing.T) {
	s := newUsersStore(t)
	s.InsertNewRowAt(3)
	s.ToggleSelectRow(1)
	s.ToggleSelectRow(3)

	if n := s.RemoveSelectedRows(); n != 2 {
		t.Fatalf("expected 2 rows touched, got %d", n)
	}
	if s.GetRowsCount() != 3 {
		t.Errorf("the new row should be spliced out, got %d rows", s.GetRowsCount())
	}
	if s.RowChangeState(1) != RowStateRemoved {
		t.Error("existing row should be marked removed")
	}
	if got := s.ChangeCount(); got != 1 {
		t.Errorf("expected 1 logged row, got %d", got)
	}
}

func TestRemoveSelectedRows_FallsBackToFocus(t *testing.T) {
	s := newUsersStore(t)
	s.SetFocus(2, 0)
	if n := s.RemoveSelectedRows(); n != 1 {
		t.Fatalf("expected the focused row to be removed, got %d", n)
	}
	if s.RowChangeState(2) != RowStateRemoved {
		t.Error("focused row should be marked removed")
	}
}
