package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const appName = "tedgrid"

// Settings represents the application configuration
type Settings struct {
	TelemetryEnabled bool   `json:"telemetry_enabled"`
	FirstRunComplete bool   `json:"first_run_complete"`
	SentryDSN        string `json:"sentry_dsn,omitempty"`
	PageSize         int    `json:"page_size,omitempty"`
}

// DefaultPageSize bounds how many rows a table open fetches.
const DefaultPageSize = 5000

// getConfigDir returns the configuration directory following XDG Base Directory spec
func getConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// getStateDir returns the directory for logs.
func getStateDir() (string, error) {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) (string, error) {
	if xdgHome := os.Getenv(env); xdgHome != "" {
		return filepath.Join(xdgHome, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	return filepath.Join(home, fallback, appName), nil
}

// getSettingsPath returns the full path to settings.json
func getSettingsPath() (string, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "settings.json"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() error {
	configDir, err := getConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	return nil
}

// LoadSettings reads the settings.json file, returning defaults if it doesn't exist
func LoadSettings() (*Settings, error) {
	if err := EnsureConfigDir(); err != nil {
		return nil, err
	}

	settingsPath, err := getSettingsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(settingsPath)
	if os.IsNotExist(err) {
		// First run
		return &Settings{PageSize: DefaultPageSize}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("could not parse settings file: %w", err)
	}
	if settings.PageSize <= 0 {
		settings.PageSize = DefaultPageSize
	}

	return &settings, nil
}

// SaveSettings writes the settings to settings.json
func SaveSettings(settings *Settings) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	settingsPath, err := getSettingsPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0o644); err != nil {
		return fmt.Errorf("could not write settings file: %w", err)
	}

	return nil
}
