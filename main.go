package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tedgrid/internal/dblib"
)

// connectTimeout bounds opening and pinging the database.
const connectTimeout = 10 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tedgrid [connection] [table | table.col,col]",
	Short: "tedgrid is a spreadsheet-style editor for database tables",
	Long: `tedgrid shows a database table as an editable grid. Edits, inserts and
deletions are kept locally until they are committed as a single transaction.

The connection is a name from connections.yaml, a SQLite file, or a local
PostgreSQL or MySQL database name.

Examples:
  tedgrid app.db users
  tedgrid shop orders.id,status
  tedgrid shop -c "select id, name from customers where country = 'NZ'"`,
	Args:         cobra.RangeArgs(1, 2),
	SilenceUsage: true,
	RunE:         runTedgrid,
}

var (
	database string
	host     string
	port     string
	username string
	password string
	command  string
	dbType   string
	logFile  string
	pageSize int
	verbose  bool
)

func init() {
	rootCmd.Flags().BoolP("help", "", false, "help for tedgrid")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "Database name")
	rootCmd.Flags().StringVarP(&host, "host", "h", "", "Database host")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "Database port")
	rootCmd.Flags().StringVarP(&username, "username", "U", "", "Database username")
	rootCmd.Flags().StringVarP(&password, "password", "W", "", "Database password")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "SELECT query to open instead of a table")
	rootCmd.Flags().StringVar(&dbType, "type", "", "Database type: sqlite, postgres or mysql")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs here instead of the state directory")
	rootCmd.Flags().IntVar(&pageSize, "page-size", 0, "Maximum rows to load (default from settings)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every SQL statement")
}

func runTedgrid(cmd *cobra.Command, args []string) error {
	level := defaultLogLevel
	if verbose {
		level = slog.LevelDebug
	}
	path := logFile
	if path == "" {
		var err error
		if path, err = defaultLogPath(); err != nil {
			return err
		}
	}
	closeLog, err := setupLogging(path, level)
	if err != nil {
		return err
	}
	defer closeLog()

	settings, err := LoadSettings()
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}
	if !settings.FirstRunComplete {
		settings.FirstRunComplete = true
		if err := SaveSettings(settings); err != nil {
			slog.Warn("could not save settings", "error", err)
		}
	}
	if settings.TelemetryEnabled && settings.SentryDSN != "" {
		if err := InitSentry(settings.SentryDSN); err != nil {
			slog.Warn("telemetry disabled", "error", err)
		}
	}
	defer FlushAndShutdown()
	InitBreadcrumbs(100)

	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	flags := ConnectionFlags{
		Database: database,
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		Type:     dbType,
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout)
	driver, dbConfig, err := resolveConnection(ctx, config, args[0], flags)
	cancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer driver.Close()
	slog.Info("connected", "name", dbConfig.Name, "type", driver.DBType)

	table, query := "", command
	if len(args) == 2 && query == "" {
		table, query = parseTableArg(args[1])
	}

	if pageSize <= 0 {
		pageSize = settings.PageSize
	}
	name := dbConfig.Name
	if dblib.IsEmbedded(driver.DBType) {
		name = filepath.Base(name)
	}
	model := NewModel(modelConfig{
		Driver:   dblib.NewLoggingDriver(driver, slog.Default()),
		Lister:   driver,
		DBType:   driver.DBType,
		DBName:   name,
		PageSize: pageSize,
		Table:    table,
		Query:    query,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	model.sender.Attach(p)
	if _, err := p.Run(); err != nil {
		CaptureError(err)
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// parseTableArg reads "table" or "table.col,col". A dotted name without a
// comma is taken as a qualified table name.
func parseTableArg(arg string) (table, query string) {
	i := strings.LastIndex(arg, ".")
	if i < 0 || !strings.Contains(arg[i+1:], ",") {
		return arg, ""
	}
	return "", fmt.Sprintf("SELECT %s FROM %s", arg[i+1:], arg[:i])
}
