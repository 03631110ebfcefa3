//go:build debug

package main

import "log/slog"

// defaultLogLevel is verbose when built with -tags debug.
const defaultLogLevel = slog.LevelDebug
