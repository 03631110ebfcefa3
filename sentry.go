package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"tedgrid/internal/commit"
)

var sentryEnabled bool

// InitSentry initializes the Sentry client with the given DSN
func InitSentry(dsn string) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      getEnvironment(),
		TracesSampleRate: 0.1,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	sentryEnabled = true

	if dir, err := os.UserCacheDir(); err == nil {
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetUser(sentry.User{ID: dir})
		})
	}
	return nil
}

// getEnvironment determines the environment (dev or production)
func getEnvironment() string {
	if _, err := os.Stat(".git"); err == nil {
		return "development"
	}
	if os.Getenv("TEDGRID_ENV") == "dev" {
		return "development"
	}
	return "production"
}

// FlushAndShutdown flushes pending Sentry events
func FlushAndShutdown() {
	if sentryEnabled {
		sentry.Flush(5 * time.Second)
	}
}

// CaptureError logs err and sends it to Sentry along with pending
// breadcrumbs. Validation errors are user mistakes and are only logged.
func CaptureError(err error) {
	if err == nil {
		return
	}
	slog.Error("operation failed", "error", err)

	var verr *commit.ValidationError
	if !sentryEnabled || errors.As(err, &verr) {
		return
	}
	if breadcrumbs != nil {
		breadcrumbs.Flush()
	}
	sentry.CaptureException(err)
}
