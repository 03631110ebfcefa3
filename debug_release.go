//go:build !debug

package main

import "log/slog"

const defaultLogLevel = slog.LevelInfo
