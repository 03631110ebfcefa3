package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// BreadcrumbType represents the type of breadcrumb event
type BreadcrumbType string

const (
	BreadcrumbKeyboard   BreadcrumbType = "keyboard"
	BreadcrumbNavigation BreadcrumbType = "navigation"
	BreadcrumbEdit       BreadcrumbType = "edit"
	BreadcrumbDatabase   BreadcrumbType = "database"
)

// aggregateWindow is how close two identical events must be to merge.
const aggregateWindow = 100 * time.Millisecond

// BreadcrumbEntry represents a single breadcrumb event
type BreadcrumbEntry struct {
	Type      BreadcrumbType
	Message   string
	Data      map[string]any
	Timestamp time.Time
	Level     sentry.Level
	Count     int
}

// BreadcrumbBuffer is a thread-safe circular buffer of recent grid actions.
// Repeated events (holding down an arrow key) collapse into one entry.
type BreadcrumbBuffer struct {
	entries      []BreadcrumbEntry
	maxSize      int
	currentIndex int
	count        int
	mu           sync.Mutex
}

// NewBreadcrumbBuffer creates a new breadcrumb buffer with the given max size
func NewBreadcrumbBuffer(maxSize int) *BreadcrumbBuffer {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &BreadcrumbBuffer{
		entries: make([]BreadcrumbEntry, maxSize),
		maxSize: maxSize,
	}
}

func (b *BreadcrumbBuffer) addEntry(entry BreadcrumbEntry) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	entry.Count = 1
	if b.count > 0 {
		lastIdx := (b.currentIndex - 1 + b.maxSize) % b.maxSize
		last := &b.entries[lastIdx]
		if canAggregate(last, &entry) {
			last.Count++
			last.Timestamp = entry.Timestamp
			return
		}
	}

	b.entries[b.currentIndex] = entry
	b.currentIndex = (b.currentIndex + 1) % b.maxSize
	if b.count < b.maxSize {
		b.count++
	}
}

// canAggregate checks if two breadcrumbs describe the same repeated action
func canAggregate(last, current *BreadcrumbEntry) bool {
	if last.Type != current.Type || last.Message != current.Message {
		return false
	}
	if current.Timestamp.Sub(last.Timestamp) > aggregateWindow {
		return false
	}
	// Edits and database operations are never merged.
	return current.Type == BreadcrumbKeyboard || current.Type == BreadcrumbNavigation
}

// RecordKeyboard records a keyboard event
func (b *BreadcrumbBuffer) RecordKeyboard(key string) {
	b.addEntry(BreadcrumbEntry{
		Type:      BreadcrumbKeyboard,
		Message:   "Key: " + key,
		Timestamp: time.Now(),
		Level:     sentry.LevelDebug,
		Data:      map[string]any{"key": key},
	})
}

// RecordNavigation records a mode change (palette opened, table switched)
func (b *BreadcrumbBuffer) RecordNavigation(mode string, description string) {
	b.addEntry(BreadcrumbEntry{
		Type:      BreadcrumbNavigation,
		Message:   fmt.Sprintf("Navigation: %s - %s", mode, description),
		Timestamp: time.Now(),
		Level:     sentry.LevelInfo,
		Data:      map[string]any{"mode": mode, "description": description},
	})
}

// RecordEdit records a grid mutation. Cell values are not recorded.
func (b *BreadcrumbBuffer) RecordEdit(action string, row, col int) {
	b.addEntry(BreadcrumbEntry{
		Type:      BreadcrumbEdit,
		Message:   "Edit: " + action,
		Timestamp: time.Now(),
		Level:     sentry.LevelInfo,
		Data:      map[string]any{"action": action, "row": row, "col": col},
	})
}

// RecordDatabase records a database operation
func (b *BreadcrumbBuffer) RecordDatabase(operation string) {
	b.addEntry(BreadcrumbEntry{
		Type:      BreadcrumbDatabase,
		Message:   "DB: " + operation,
		Timestamp: time.Now(),
		Level:     sentry.LevelInfo,
		Data:      map[string]any{"operation": operation},
	})
}

// drain returns buffered entries oldest first and empties the buffer.
func (b *BreadcrumbBuffer) drain() []BreadcrumbEntry {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]BreadcrumbEntry, 0, b.count)
	start := 0
	if b.count == b.maxSize {
		start = b.currentIndex
	}
	for i := 0; i < b.count; i++ {
		out = append(out, b.entries[(start+i)%b.maxSize])
	}

	b.entries = make([]BreadcrumbEntry, b.maxSize)
	b.currentIndex = 0
	b.count = 0
	return out
}

// Flush sends buffered breadcrumbs to the Sentry scope
func (b *BreadcrumbBuffer) Flush() {
	entries := b.drain()
	if len(entries) == 0 {
		return
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		for _, e := range entries {
			message, data := e.Message, e.Data
			if e.Count > 1 {
				message = fmt.Sprintf("%s (x%d)", e.Message, e.Count)
				data = make(map[string]any, len(e.Data)+1)
				for k, v := range e.Data {
					data[k] = v
				}
				data["count"] = e.Count
			}
			scope.AddBreadcrumb(&sentry.Breadcrumb{
				Message:   message,
				Category:  string(e.Type),
				Data:      data,
				Timestamp: e.Timestamp,
				Level:     e.Level,
			}, b.maxSize)
		}
	})
}

// Global breadcrumb buffer instance. Recording on a nil buffer is a no-op.
var breadcrumbs *BreadcrumbBuffer

// InitBreadcrumbs initializes the global breadcrumb buffer
func InitBreadcrumbs(maxSize int) {
	breadcrumbs = NewBreadcrumbBuffer(maxSize)
}
