package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tedgrid.log")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create log file: %v", err)
	}
	defer f.Close()

	logger := newLogger(f, slog.LevelInfo)
	logger.Info("commit applied", "table", "users", "error", "", "inserted", 2)
	logger.Debug("statement")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "commit applied") || !strings.Contains(out, "inserted=2") {
		t.Errorf("expected info line with attributes, got %q", out)
	}
	if strings.Contains(out, "error=") {
		t.Errorf("empty attributes should be dropped, got %q", out)
	}
	if strings.Contains(out, "statement") {
		t.Errorf("debug line should be filtered at info level, got %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("file output should not be coloured, got %q", out)
	}
}
