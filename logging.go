package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// defaultLogPath is where logs go while the TUI owns the terminal.
func defaultLogPath() (string, error) {
	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName+".log"), nil
}

// setupLogging installs the default slog logger writing to path. Colour is
// kept only when path is a terminal (e.g. --log-file /dev/pts/3).
func setupLogging(path string, level slog.Level) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}

	slog.SetDefault(newLogger(f, level))
	return func() { f.Close() }, nil
}

func newLogger(f *os.File, level slog.Level) *slog.Logger {
	tty := isatty.IsTerminal(f.Fd())
	var w io.Writer = colorable.NewNonColorable(f)
	if tty {
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !tty,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch v := a.Value.Any().(type) {
			case nil:
				return slog.Attr{}
			case string:
				if v == "" {
					return slog.Attr{}
				}
			case time.Duration:
				if v == 0 {
					return slog.Attr{}
				}
			}
			return a
		},
	}))
}
