package main

import (
	"testing"
	"time"
)

func TestBreadcrumbBuffer_Aggregates(t *testing.T) {
	b := NewBreadcrumbBuffer(10)
	now := time.Now()

	b.addEntry(BreadcrumbEntry{Type: BreadcrumbKeyboard, Message: "Key: down", Timestamp: now})
	b.addEntry(BreadcrumbEntry{Type: BreadcrumbKeyboard, Message: "Key: down", Timestamp: now.Add(50 * time.Millisecond)})
	b.addEntry(BreadcrumbEntry{Type: BreadcrumbKeyboard, Message: "Key: down", Timestamp: now.Add(90 * time.Millisecond)})
	b.addEntry(BreadcrumbEntry{Type: BreadcrumbKeyboard, Message: "Key: down", Timestamp: now.Add(time.Second)})
	b.addEntry(BreadcrumbEntry{Type: BreadcrumbEdit, Message: "Edit: change", Timestamp: now.Add(time.Second)})
	b.addEntry(BreadcrumbEntry{Type: BreadcrumbEdit, Message: "Edit: change", Timestamp: now.Add(time.Second)})

	entries := b.drain()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Count != 3 {
		t.Errorf("expected first entry to merge 3 presses, got %d", entries[0].Count)
	}
	if entries[1].Count != 1 {
		t.Errorf("a press outside the window should start a new entry, got count %d", entries[1].Count)
	}
	if entries[2].Type != BreadcrumbEdit || entries[3].Type != BreadcrumbEdit {
		t.Errorf("edits must not be merged: %+v", entries[2:])
	}
	if len(b.drain()) != 0 {
		t.Error("drain should empty the buffer")
	}
}

func TestBreadcrumbBuffer_Wraps(t *testing.T) {
	b := NewBreadcrumbBuffer(3)
	for _, op := range []string{"a", "b", "c", "d", "e"} {
		b.RecordDatabase(op)
	}

	entries := b.drain()
	want := []string{"DB: c", "DB: d", "DB: e"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].Message != w {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Message, w)
		}
	}
}
